package writer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CapturesBatches(t *testing.T) {
	r := NewRecorder()
	batch := NewBatch("/tmp/deck.pptx",
		DuplicateSlide("Q3 Overview"),
		SetChartDataLabelPosition("Q3 Overview", "Revenue Chart", 1, "outside_end"),
	)

	res, err := r.Apply(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, res.BatchID)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 0, res.Failed)

	last, ok := r.Last()
	require.True(t, ok)
	require.Len(t, last.Ops, 2)
	assert.Equal(t, OpDuplicateSlide, last.Ops[0].Type)
	assert.Equal(t, "Q3 Overview", last.Ops[0].Target)
	assert.Equal(t, OpSetChartDataLabelPosition, last.Ops[1].Type)
	assert.Equal(t, "Revenue Chart", last.Ops[1].Params["chart"])
	assert.Equal(t, "outside_end", last.Ops[1].Params["position"])
}

func TestRecorder_ValidatesBeforeRecording(t *testing.T) {
	r := NewRecorder()

	_, err := r.Apply(context.Background(), NewBatch("/tmp/deck.pptx",
		SetChartDataLabelPosition("S1", "Chart 1", 0, "diagonal")))
	require.Error(t, err)
	assert.Empty(t, r.Batches())
}

func TestRecorder_ConfigurableResult(t *testing.T) {
	r := NewRecorder()
	r.Result = &Result{
		Applied: 1,
		Failed:  1,
		Errors:  []OpError{{Index: 1, Op: OpDeleteSlide, Message: "slide not found"}},
	}

	batch := NewBatch("/tmp/deck.pptx", DuplicateSlide("A"), DeleteSlide("B"))
	res, err := r.Apply(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, res.BatchID)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "slide not found", res.Errors[0].Message)
}

func TestRecorder_ConfigurableError(t *testing.T) {
	r := NewRecorder()
	r.Err = errors.New("workbook locked")

	_, err := r.Apply(context.Background(), NewBatch("/tmp/book.xlsx", InsertRows("Sheet1", 2, 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workbook locked")
	assert.Len(t, r.Batches(), 1, "failed applies are still recorded")
}
