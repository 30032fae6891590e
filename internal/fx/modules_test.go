package fx

import (
	"testing"

	"lol-reviewer/internal/middleware"
	"lol-reviewer/internal/server"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModule_GraphResolves(t *testing.T) {
	err := fx.ValidateApp(
		Module,
		fx.Invoke(func(*server.ReviewServer, *middleware.ClientLimiter) {}),
	)
	require.NoError(t, err)
}
