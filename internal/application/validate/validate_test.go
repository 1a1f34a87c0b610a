package validate

import (
	"errors"
	"testing"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
}

type command struct {
	TenantID uuid.UUID `json:"tenant_id" validate:"required"`
	Name     string    `json:"name" validate:"required,max=10"`
	Email    string    `json:"email" validate:"omitempty,email"`
	Method   string    `json:"method" validate:"oneof=cash bank_transfer"`
	Lines    []line    `json:"lines" validate:"min=1,dive"`
}

func validCommand() command {
	return command{
		TenantID: uuid.New(),
		Name:     "north",
		Method:   "cash",
		Lines:    []line{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(2)}},
	}
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(validCommand()))
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	cmd := validCommand()
	cmd.TenantID = uuid.Nil
	cmd.Name = "a name that is far too long"
	cmd.Method = "cheque"

	err := Struct(cmd)
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	assert.Contains(t, err.Error(), "tenant_id: is required")
	assert.Contains(t, err.Error(), "name: must be at most 10 characters")
	assert.Contains(t, err.Error(), "method: must be one of: cash bank_transfer")

	var fieldErrs validator.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Len(t, fieldErrs, 3)
}

func TestStruct_DecimalAndNestedLines(t *testing.T) {
	cmd := validCommand()
	cmd.Lines = append(cmd.Lines, line{ProductID: uuid.New(), Quantity: decimal.Zero})

	err := Struct(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lines[1].quantity: must be greater than 0")

	cmd.Lines = nil
	err = Struct(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lines: must have at least 1 items")
}

func TestStruct_InvalidEmail(t *testing.T) {
	cmd := validCommand()
	cmd.Email = "not-an-email"
	assert.ErrorContains(t, Struct(cmd), "email: must be a valid email")
}
