// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courier-mq/courier/broker/validate"
)

func TestQueueName(t *testing.T) {
	limits := validate.DefaultLimits()

	for _, name := range []string{
		"orders",
		"order-events_2",
		"Q",
		strings.Repeat("a", validate.MaxQueueNameLength),
	} {
		assert.NoError(t, limits.QueueName(name), "name %q", name)
	}

	for _, name := range []string{
		"",
		strings.Repeat("a", validate.MaxQueueNameLength+1),
		"orders.dlq",
		"orders queue",
		"naïve",
		"queue/evil",
	} {
		err := limits.QueueName(name)
		assert.True(t, validate.ErrInvalid.Has(err), "name %q", name)
	}
}

func TestProject(t *testing.T) {
	limits := validate.DefaultLimits()

	assert.NoError(t, limits.Project("project-1"))
	assert.NoError(t, limits.Project(strings.Repeat("p", limits.MaxProjectLength)))

	for _, project := range []string{
		"",
		strings.Repeat("p", limits.MaxProjectLength+1),
		"proj\tect",
		"prøject",
	} {
		err := limits.Project(project)
		assert.True(t, validate.ErrInvalid.Has(err), "project %q", project)
	}
}

func TestClientID(t *testing.T) {
	limits := validate.DefaultLimits()

	id, err := limits.ClientID("7f3c9e6a-4b21-4f8a-9c56-0d1e2f3a4b5c")
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", id.String())

	_, err = limits.ClientID("not-a-uuid")
	assert.True(t, validate.ErrInvalid.Has(err))
	_, err = limits.ClientID("")
	assert.True(t, validate.ErrInvalid.Has(err))
}

func TestMessageTTL(t *testing.T) {
	limits := validate.DefaultLimits()

	assert.NoError(t, limits.MessageTTL(validate.MinMessageTTL))
	assert.NoError(t, limits.MessageTTL(3600))
	assert.NoError(t, limits.MessageTTL(validate.MaxMessageTTL))

	for _, ttl := range []int{-1, 0, validate.MinMessageTTL - 1, validate.MaxMessageTTL + 1} {
		err := limits.MessageTTL(ttl)
		assert.True(t, validate.ErrInvalid.Has(err), "ttl %d", ttl)
	}
}

func TestClaimBounds(t *testing.T) {
	limits := validate.DefaultLimits()

	assert.NoError(t, limits.ClaimTTL(limits.MinClaimTTL))
	assert.NoError(t, limits.ClaimTTL(limits.MaxClaimTTL))
	assert.True(t, validate.ErrInvalid.Has(limits.ClaimTTL(limits.MinClaimTTL-1)))
	assert.True(t, validate.ErrInvalid.Has(limits.ClaimTTL(limits.MaxClaimTTL+1)))

	assert.NoError(t, limits.ClaimGrace(limits.MinClaimGrace))
	assert.NoError(t, limits.ClaimGrace(limits.MaxClaimGrace))
	assert.True(t, validate.ErrInvalid.Has(limits.ClaimGrace(limits.MinClaimGrace-1)))
	assert.True(t, validate.ErrInvalid.Has(limits.ClaimGrace(limits.MaxClaimGrace+1)))
}

func TestPostBatch(t *testing.T) {
	limits := validate.DefaultLimits()

	assert.NoError(t, limits.PostBatch(1))
	assert.NoError(t, limits.PostBatch(limits.MaxMessagesPerPost))
	assert.True(t, validate.ErrInvalid.Has(limits.PostBatch(0)))
	assert.True(t, validate.ErrInvalid.Has(limits.PostBatch(limits.MaxMessagesPerPost+1)))
}

func TestListLimit(t *testing.T) {
	limits := validate.DefaultLimits()

	assert.NoError(t, limits.ListLimit(1))
	assert.NoError(t, limits.ListLimit(limits.MaxMessagesPerPage))
	assert.True(t, validate.ErrInvalid.Has(limits.ListLimit(0)))
	assert.True(t, validate.ErrInvalid.Has(limits.ListLimit(-5)))
	assert.True(t, validate.ErrInvalid.Has(limits.ListLimit(limits.MaxMessagesPerPage+1)))
}

func TestBulkIDs(t *testing.T) {
	limits := validate.DefaultLimits()

	assert.NoError(t, limits.BulkIDs(1))
	assert.NoError(t, limits.BulkIDs(limits.MaxBulkIDs))
	assert.True(t, validate.ErrInvalid.Has(limits.BulkIDs(0)))
	assert.True(t, validate.ErrInvalid.Has(limits.BulkIDs(limits.MaxBulkIDs+1)))
}
