package result

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroryan/shopledger/internal/model"
)

func TestOK(t *testing.T) {
	r := OK(map[string]int{"available": 3})
	assert.True(t, r.Succeeded())
	assert.Empty(t, r.Code)

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","data":{"available":3}}`, string(raw))
}

func TestFail_Rejection(t *testing.T) {
	err := model.Rejectf(model.CodeInsufficientStock, "only %d left", 1).
		With("available_stock", 1).
		With("requested", 2)
	r := Fail(err)

	assert.False(t, r.Succeeded())
	assert.Equal(t, model.CodeInsufficientStock, r.Code)
	assert.Equal(t, "only 1 left", r.Error)
	assert.False(t, r.Retryable)
	v, ok := r.Detail("available_stock")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = r.Detail("missing")
	assert.False(t, ok)
}

func TestFail_StoreError(t *testing.T) {
	r := Fail(errors.New("database is locked"))

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, model.CodeStoreError, r.Code)
	assert.True(t, r.Retryable)
	assert.Equal(t, "database is locked", r.Error)
	assert.Nil(t, r.Details)
}

func TestFrom(t *testing.T) {
	ok := From(5, nil)
	assert.Equal(t, OK(5), ok)

	failed := From(0, model.InvalidInput("quantity", "must be positive"))
	assert.False(t, failed.Succeeded())
	assert.Nil(t, failed.Data)
	assert.Equal(t, model.CodeInvalidInput, failed.Code)
}
