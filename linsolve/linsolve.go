package linsolve

import (
	"errors"

	"github.com/notargets/golowmach/grid2D"
)

var (
	ErrNotConverged = errors.New("linear solver did not converge")
)

type Result struct {
	Iterations int
	Residual   float64
	Converged  bool
}

// LinearSolver solves the elliptic systems of one AMR level. Ghost cells of the unknown
// that lie inside the domain but off the level carry Dirichlet data for the solve.
type LinearSolver interface {
	SolveDiffusion(sys *DiffusionSystem) (Result, error)
	SolveProjection(sys *ProjectionSystem) (Result, error)
}

/*
DiffusionSystem is the implicit diffusion problem

	Alpha*A*phi - B*div(Beta grad phi) = Rhs

on the valid cells of one level. A is a cell coefficient (nil means 1), Beta a face
coefficient (nil means 1). Physical boundaries are homogeneous Neumann.
Phi holds the initial guess on entry and the solution, with ghost cells filled, on exit.
*/
type DiffusionSystem struct {
	Geom     *grid2D.Geometry
	Phi      *grid2D.MultiFab
	PhiComp  int
	Rhs      *grid2D.MultiFab
	RhsComp  int
	Alpha    float64
	A        *grid2D.MultiFab
	AComp    int
	B        float64
	Beta     grid2D.EdgeMultiFabs
	BetaComp int
	AbsTol   float64
}

/*
ProjectionSystem is the variable coefficient Poisson problem

	-div(Sigma grad phi) = Rhs

Outflow faces hold phi = 0 on the face, every other physical face is homogeneous
Neumann. Without any Dirichlet data the system is singular; the solver then removes the
mean of Rhs and returns the mean free solution.
*/
type ProjectionSystem struct {
	Geom      *grid2D.Geometry
	Phi       *grid2D.MultiFab
	PhiComp   int
	Rhs       *grid2D.MultiFab
	RhsComp   int
	Sigma     grid2D.EdgeMultiFabs
	SigmaComp int
	AbsTol    float64
}
