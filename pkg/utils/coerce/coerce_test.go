package coerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToInt(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    int
		wantErr bool
	}{
		{"2048", 2048, false},
		{12.0, 12, false},
		{int64(7), 7, false},
		{nil, 0, false},
		{"budi", 0, true},
	}
	for _, tc := range tests {
		got, err := ToInt(tc.in)
		if tc.wantErr {
			assert.Error(t, err)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, 4096, ToIntDef("", 4096))
	assert.Equal(t, 4096, ToIntDef("lots", 4096))
	assert.Equal(t, 10, ToIntDef("10", 4096))

	assert.Equal(t, time.Minute, ToDurationDef("", time.Minute))
	assert.Equal(t, 30*time.Second, ToDurationDef("30s", time.Minute))
	assert.Equal(t, time.Minute, ToDurationDef("soon", time.Minute))
}

func TestToBoolAndString(t *testing.T) {
	b, err := ToBool("true")
	assert.NoError(t, err)
	assert.True(t, b)

	_, err = ToBool("maybe")
	assert.Error(t, err)

	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "42", ToString(42))
}
