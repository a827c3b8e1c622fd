// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package validate checks request fields against the broker's limits before
// anything reaches storage. Every failure is an ErrInvalid, which the HTTP
// layer turns into 400.
package validate

import (
	"regexp"
	"unicode"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

// ErrInvalid is the class for every validation failure.
var ErrInvalid = errs.Class("invalid request")

// Fixed protocol bounds.
const (
	MinMessageTTL = 60
	MaxMessageTTL = 1209600

	MaxQueueNameLength = 64
)

var queueNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Limits carries the configurable ceilings.
type Limits struct {
	MaxProjectLength   int   `json:"maxProjectLength" yaml:"maxProjectLength"`
	MaxMessageSize     int64 `json:"maxMessageSize" yaml:"maxMessageSize"`
	MaxMessagesPerPage int   `json:"maxMessagesPerPage" yaml:"maxMessagesPerPage"`
	MaxMessagesPerPost int   `json:"maxMessagesPerPost" yaml:"maxMessagesPerPost"`
	MaxBulkIDs         int   `json:"maxBulkIds" yaml:"maxBulkIds"`

	MinClaimTTL   int `json:"minClaimTtl" yaml:"minClaimTtl"`
	MaxClaimTTL   int `json:"maxClaimTtl" yaml:"maxClaimTtl"`
	MinClaimGrace int `json:"minClaimGrace" yaml:"minClaimGrace"`
	MaxClaimGrace int `json:"maxClaimGrace" yaml:"maxClaimGrace"`
}

// DefaultLimits returns the stock configuration.
func DefaultLimits() Limits {
	return Limits{
		MaxProjectLength:   256,
		MaxMessageSize:     256 * 1024,
		MaxMessagesPerPage: 20,
		MaxMessagesPerPost: 20,
		MaxBulkIDs:         20,

		MinClaimTTL:   60,
		MaxClaimTTL:   43200,
		MinClaimGrace: 60,
		MaxClaimGrace: 43200,
	}
}

// QueueName checks length and charset of a queue name.
func (l Limits) QueueName(name string) error {
	if name == "" {
		return ErrInvalid.New("queue name must not be empty")
	}
	if len(name) > MaxQueueNameLength {
		return ErrInvalid.New("queue name longer than %d characters", MaxQueueNameLength)
	}
	if !queueNameRe.MatchString(name) {
		return ErrInvalid.New("queue name may only contain ASCII letters, digits, underscores, and hyphens")
	}
	return nil
}

// Project checks the X-Project-ID header value.
func (l Limits) Project(project string) error {
	if project == "" {
		return ErrInvalid.New("project id must not be empty")
	}
	if len(project) > l.MaxProjectLength {
		return ErrInvalid.New("project id longer than %d characters", l.MaxProjectLength)
	}
	for _, r := range project {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return ErrInvalid.New("project id must be printable ASCII")
		}
	}
	return nil
}

// ClientID checks the Client-ID header value.
func (l Limits) ClientID(clientID string) (uuid.UUID, error) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return uuid.UUID{}, ErrInvalid.New("client id must be a UUID: %v", err)
	}
	return id, nil
}

// MessageTTL checks a posted message's ttl.
func (l Limits) MessageTTL(ttl int) error {
	if ttl < MinMessageTTL || ttl > MaxMessageTTL {
		return ErrInvalid.New("message ttl must be between %d and %d seconds, got %d",
			MinMessageTTL, MaxMessageTTL, ttl)
	}
	return nil
}

// ClaimTTL checks a claim's lease duration.
func (l Limits) ClaimTTL(ttl int) error {
	if ttl < l.MinClaimTTL || ttl > l.MaxClaimTTL {
		return ErrInvalid.New("claim ttl must be between %d and %d seconds, got %d",
			l.MinClaimTTL, l.MaxClaimTTL, ttl)
	}
	return nil
}

// ClaimGrace checks a claim's grace period.
func (l Limits) ClaimGrace(grace int) error {
	if grace < l.MinClaimGrace || grace > l.MaxClaimGrace {
		return ErrInvalid.New("claim grace must be between %d and %d seconds, got %d",
			l.MinClaimGrace, l.MaxClaimGrace, grace)
	}
	return nil
}

// PostBatch checks the number of messages in one post.
func (l Limits) PostBatch(count int) error {
	if count == 0 {
		return ErrInvalid.New("no messages to post")
	}
	if count > l.MaxMessagesPerPost {
		return ErrInvalid.New("at most %d messages may be posted at once, got %d",
			l.MaxMessagesPerPost, count)
	}
	return nil
}

// ListLimit checks the page size of a listing.
func (l Limits) ListLimit(limit int) error {
	if limit < 1 || limit > l.MaxMessagesPerPage {
		return ErrInvalid.New("limit must be between 1 and %d, got %d",
			l.MaxMessagesPerPage, limit)
	}
	return nil
}

// BulkIDs checks the number of ids in a bulk get or delete.
func (l Limits) BulkIDs(count int) error {
	if count == 0 {
		return ErrInvalid.New("no message ids given")
	}
	if count > l.MaxBulkIDs {
		return ErrInvalid.New("at most %d ids per request, got %d", l.MaxBulkIDs, count)
	}
	return nil
}
