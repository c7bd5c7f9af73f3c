package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name  string `validate:"required"`
	Units int    `validate:"gt=0"`
}

func TestValidate(t *testing.T) {
	assert.Nil(t, Validate(sample{Name: "bus", Units: 1}))

	errs := Validate(sample{})
	assert.Equal(t, "required", errs["sample.Name"])
	assert.Equal(t, "gt", errs["sample.Units"])
}

func TestDetails(t *testing.T) {
	assert.Nil(t, Details(nil))

	err := validate.Struct(sample{Name: "bus"})
	assert.Equal(t, map[string]string{"Units": "gt"}, Details(err))

	assert.Equal(t, map[string]string{"body": "unexpected EOF"}, Details(errors.New("unexpected EOF")))
}
