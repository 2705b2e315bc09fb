package curriculum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaveValidatesLevelRange(t *testing.T) {
	service := NewService(nil)

	for _, level := range []int{0, -1, 9, 100} {
		_, err := service.Save(context.Background(), &Curriculum{Level: level, Title: "x"})
		assert.ErrorIs(t, err, ErrInvalidLevel, "level %d", level)
	}
}
