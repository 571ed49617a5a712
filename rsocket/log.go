package rsocket

import "go.uber.org/zap"

// Logger is the structured logger connections use for a few events
// (connection closed, InitializeConnectionFunc failure, NEXT dropped for
// lack of demand, KEEPALIVE write failure). Defaults to a no-op logger so the library
// stays silent unless an integrator wires one in via WithLogger.
type Logger = *zap.Logger

func nopLogger() Logger { return zap.NewNop() }
