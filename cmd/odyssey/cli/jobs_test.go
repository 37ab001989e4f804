package cli

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/jobs"
)

func TestParseTriggerArgs(t *testing.T) {
	args, err := ParseTriggerArgs([]string{"-repair", jobs.TaskLedgerIntegrity}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, TriggerArgs{Task: jobs.TaskLedgerIntegrity, Repair: true}, args)

	args, err = ParseTriggerArgs([]string{jobs.TaskCountsStaleScan}, io.Discard)
	require.NoError(t, err)
	assert.False(t, args.Repair)

	_, err = ParseTriggerArgs(nil, io.Discard)
	require.Error(t, err)

	_, err = ParseTriggerArgs([]string{"reports:build"}, io.Discard)
	require.ErrorIs(t, err, jobs.ErrUnknownTask)

	_, err = ParseTriggerArgs([]string{"-force", jobs.TaskLedgerIntegrity}, io.Discard)
	require.Error(t, err)
}
