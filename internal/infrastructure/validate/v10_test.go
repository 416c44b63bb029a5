package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageQuery struct {
	CourseID string `json:"courseId,omitempty" validate:"required"`
	Limit    int    `query:"limit" validate:"omitempty,max=100"`
}

func TestPlaygroundV10Struct(t *testing.T) {
	v := NewValidator()

	assert.Nil(t, v.Struct(&pageQuery{CourseID: "c1", Limit: 20}))

	errs := v.Struct(&pageQuery{Limit: 500})
	require.Len(t, errs, 2)
	assert.Equal(t, "courseId", errs[0].Domain)
	assert.Equal(t, "limit", errs[1].Domain)

	errs = v.Struct(nil)
	require.Len(t, errs, 1)
	assert.NotEmpty(t, errs[0].Reason)
}

func TestPlaygroundV10Empty(t *testing.T) {
	v := NewValidator()

	errs := v.Empty("courseId", "")
	require.Len(t, errs, 1)
	assert.Equal(t, "courseId is required", errs[0].Reason)
	assert.Nil(t, v.Empty("courseId", "c1"))

	assert.NotNil(t, v.AllEmpty([]string{"username", "email"}, "", ""))
	assert.Nil(t, v.AllEmpty([]string{"username", "email"}, "", "a@b.c"))
}
