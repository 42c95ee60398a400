package linsolve

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/golowmach/grid2D"
)

// CGSolver assembles each system into a sparse matrix and solves it with Jacobi
// preconditioned conjugate gradients
type CGSolver struct {
	RTol    float64
	MaxIter int
}

func NewCGSolver(rtol float64, maxIter int) *CGSolver {
	if rtol <= 0 {
		rtol = 1e-10
	}
	if maxIter <= 0 {
		maxIter = 10000
	}
	return &CGSolver{RTol: rtol, MaxIter: maxIter}
}

func (cg *CGSolver) SolveDiffusion(sys *DiffusionSystem) (res Result, err error) {
	var (
		ci = newCellIndexer(sys.Geom, sys.Phi.BA)
	)
	acoef := func(p, i, j int) float64 {
		if sys.A == nil {
			return sys.Alpha
		}
		return sys.Alpha * sys.A.Fabs[p].Get(i, j, sys.AComp)
	}
	op := assemble(ci, sys.Phi, sys.PhiComp, acoef, sys.B, sys.Beta, sys.BetaComp, neumannOnly)
	if res, err = cg.solveLevel(ci, op, sys.Phi, sys.PhiComp, sys.Rhs, sys.RhsComp, sys.AbsTol); err != nil {
		return
	}
	fillGhosts(sys.Phi, sys.Geom, sys.PhiComp, neumannOnly)
	return
}

func (cg *CGSolver) SolveProjection(sys *ProjectionSystem) (res Result, err error) {
	var (
		ci = newCellIndexer(sys.Geom, sys.Phi.BA)
	)
	zero := func(p, i, j int) float64 { return 0 }
	op := assemble(ci, sys.Phi, sys.PhiComp, zero, 1, sys.Sigma, sys.SigmaComp, outflowDirichlet)
	if res, err = cg.solveLevel(ci, op, sys.Phi, sys.PhiComp, sys.Rhs, sys.RhsComp, sys.AbsTol); err != nil {
		return
	}
	fillGhosts(sys.Phi, sys.Geom, sys.PhiComp, outflowDirichlet)
	return
}

func (cg *CGSolver) solveLevel(ci *cellIndexer, op *operator, phi *grid2D.MultiFab, pcomp int,
	rhs *grid2D.MultiFab, rcomp int, absTol float64) (res Result, err error) {
	var (
		b = make([]float64, ci.N)
		x = make([]float64, ci.N)
	)
	ci.Gather(rhs, rcomp, b)
	ci.Gather(phi, pcomp, x)
	floats.Add(b, op.rhsShift)
	if op.singular {
		removeMean(b)
		removeMean(x)
	}
	res = cg.solve(op, b, x, absTol)
	if op.singular {
		removeMean(x)
	}
	if !res.Converged {
		err = fmt.Errorf("%w: residual %.3e after %d iterations", ErrNotConverged, res.Residual, res.Iterations)
		return
	}
	log.Debugf("cg: %d unknowns, %d iterations, residual %.3e", ci.N, res.Iterations, res.Residual)
	ci.Scatter(x, phi, pcomp)
	return
}

func removeMean(v []float64) {
	if len(v) == 0 {
		return
	}
	floats.AddConst(-floats.Sum(v)/float64(len(v)), v)
}

// solve runs preconditioned CG on op, updating x in place. Convergence is
// ||r|| <= max(RTol*||b||, absTol*sqrt(N)).
func (cg *CGSolver) solve(op *operator, b, x []float64, absTol float64) (res Result) {
	var (
		n   = len(b)
		r   = make([]float64, n)
		z   = make([]float64, n)
		p   = make([]float64, n)
		ap  = make([]float64, n)
		tol = math.Max(cg.RTol*floats.Norm(b, 2), absTol*math.Sqrt(float64(n)))
	)
	matVec := func(dst, v []float64) {
		for i := range dst {
			dst[i] = 0
		}
		op.A.MulVecTo(dst, false, v)
	}
	precondition := func() {
		floats.DivTo(z, r, op.diag)
		if op.singular {
			removeMean(z)
		}
	}
	matVec(ap, x)
	floats.SubTo(r, b, ap)
	if res.Residual = floats.Norm(r, 2); res.Residual <= tol {
		res.Converged = true
		return
	}
	precondition()
	copy(p, z)
	rz := floats.Dot(r, z)
	for res.Iterations = 1; res.Iterations <= cg.MaxIter; res.Iterations++ {
		matVec(ap, p)
		pap := floats.Dot(p, ap)
		if pap <= 0 {
			break
		}
		alpha := rz / pap
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)
		if op.singular {
			removeMean(r)
		}
		if res.Residual = floats.Norm(r, 2); res.Residual <= tol {
			res.Converged = true
			return
		}
		precondition()
		rzNew := floats.Dot(r, z)
		floats.AddScaledTo(p, z, rzNew/rz, p)
		rz = rzNew
	}
	return
}
