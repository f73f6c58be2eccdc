package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikePrefixEscapesWildcards(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"SAFE-2026-", `SAFE-2026-%`},
		{"FIRE_1-2026-", `FIRE\_1-2026-%`},
		{"A%B-2026-", `A\%B-2026-%`},
		{`C\D-2026-`, `C\\D-2026-%`},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, likePrefix(tt.prefix))
		})
	}
}
