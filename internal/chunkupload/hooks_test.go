package chunkupload_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wandb/chunkup/internal/chunkupload"
	"github.com/wandb/chunkup/internal/chunkuploadtest"
)

func TestMergeHooks_CallsInOrder(t *testing.T) {
	var calls []string
	hooks := chunkupload.MergeHooks(
		chunkupload.Hooks{
			OnStart: func(context.Context) error {
				calls = append(calls, "first start")
				return nil
			},
			OnProgress: func(percent float64) {
				calls = append(calls, "first progress")
			},
		},
		chunkupload.Hooks{},
		chunkupload.Hooks{
			OnStart: func(context.Context) error {
				calls = append(calls, "second start")
				return nil
			},
			OnProgress: func(percent float64) {
				calls = append(calls, "second progress")
			},
		},
	)

	assert.NoError(t, hooks.OnStart(context.Background()))
	hooks.OnProgress(50)
	hooks.OnItemError(chunkupload.FileItem{}, errors.New("ignored"))

	assert.Equal(t,
		[]string{"first start", "second start", "first progress", "second progress"},
		calls)
}

func TestMergeHooks_StopsAtFirstError(t *testing.T) {
	secondCalled := false
	hooks := chunkupload.MergeHooks(
		chunkupload.Hooks{
			OnItemComplete: func(context.Context, chunkupload.FileItem) error {
				return errors.New("failed")
			},
		},
		chunkupload.Hooks{
			OnItemComplete: func(context.Context, chunkupload.FileItem) error {
				secondCalled = true
				return nil
			},
		},
	)

	err := hooks.OnItemComplete(context.Background(), chunkupload.FileItem{
		File: chunkuploadtest.NewFakeFile("a", nil),
	})

	assert.EqualError(t, err, "failed")
	assert.False(t, secondCalled)
}

func TestTransferError(t *testing.T) {
	cause := errors.New("timeout")

	err := &chunkupload.TransferError{
		Op:     "transfer",
		Name:   "a.bin",
		Offset: 300,
		Err:    cause,
	}

	assert.EqualError(t, err,
		`chunkupload: transfer "a.bin" at offset 300: timeout`)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t,
		&chunkupload.TransferError{Op: "create", Name: "a.bin", Err: cause},
		`chunkupload: create "a.bin": timeout`)
}
