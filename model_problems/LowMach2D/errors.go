package LowMach2D

import (
	"errors"
	"fmt"

	"github.com/notargets/golowmach/grid2D"
)

var (
	ErrDiffusionSolveFailed       = errors.New("diffusion solve failed")
	ErrProjectionFailed           = errors.New("projection solve failed")
	ErrChemistryIntegrationFailed = errors.New("chemistry integration failed")
	ErrTemperatureOutOfBounds     = errors.New("temperature out of bounds")
	ErrCFLViolation               = errors.New("time step exceeds the CFL limit")
	ErrMassConservationViolation  = errors.New("species diffusion fluxes do not sum to zero")
	ErrFluxRegisterConsumed       = grid2D.ErrFluxRegisterConsumed
)

// AdvanceError reports a fatal condition during a level advance. The caller is expected
// to shrink the time step and repeat the advance from Setup.
type AdvanceError struct {
	Level    int
	Phase    Phase
	Pass     int
	Time, Dt float64
	Err      error
}

func (e *AdvanceError) Error() string {
	return fmt.Sprintf("level %d advance at t = %g, dt = %g failed in %s (sdc pass %d): %v",
		e.Level, e.Time, e.Dt, e.Phase, e.Pass, e.Err)
}

func (e *AdvanceError) Unwrap() error {
	return e.Err
}
