package chemistry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

const (
	maxNewtonIter = 8
	newtonTol     = 0.05 // in units of the local error weights
	hMinFraction  = 1e-10
	safety        = 0.9
)

// cellSystem is the reacting ODE of one cell in z = (rhoY_0..rhoY_n-1, rhoH)
type cellSystem struct {
	m       *Mechanism
	force   []float64
	nfev    int
	tGuess  float64
	tempErr error
	Y, wdot []float64
}

func (cs *cellSystem) rhs(dz, z []float64) {
	var (
		ns  = len(cs.Y)
		rho float64
	)
	cs.nfev++
	for k := 0; k < ns; k++ {
		rho += z[k]
	}
	for i := range dz {
		dz[i] = cs.force[i]
	}
	if rho <= 0 {
		return
	}
	for k := 0; k < ns; k++ {
		cs.Y[k] = z[k] / rho
	}
	T, err := cs.m.temperature(z[ns]/rho, cs.Y, cs.tGuess)
	if err != nil {
		cs.tempErr = err
		return
	}
	cs.tGuess = T
	cs.m.ReactionRates(rho, T, cs.Y, cs.wdot)
	for k := 0; k < ns; k++ {
		dz[k] += cs.wdot[k]
	}
}

/*
Integrate advances one cell with backward Euler steps and Richardson extrapolation: each
step of size h is also taken as two steps of h/2, the difference estimates the local
error and 2*y(h/2,h/2) - y(h) is accepted as the second order solution. The implicit
stages are solved by Newton's method in variables scaled by the state magnitude, with a
forward difference Jacobian.
*/
func (m *Mechanism) Integrate(cell *CellState, force []float64, dt float64, tol Tolerances) (nfev int, err error) {
	var (
		ns  = m.NumSpecies()
		nz  = ns + 1
		z   = make([]float64, nz)
		sys = &cellSystem{
			m:      m,
			force:  force,
			tGuess: cell.T,
			Y:      make([]float64, ns),
			wdot:   make([]float64, ns),
		}
	)
	if len(force) != nz {
		panic(fmt.Errorf("forcing has %d components, need %d", len(force), nz))
	}
	copy(z, cell.RhoY)
	z[ns] = cell.RhoH
	if dt <= 0 {
		return
	}
	var (
		rtol  = tol.RTol
		atol  = make([]float64, nz)
		scale = make([]float64, nz)
		wt    = make([]float64, nz)
		y1    = make([]float64, nz)
		yh    = make([]float64, nz)
		y2    = make([]float64, nz)
		rho0  = cell.Rho()
		t     float64
		h     = dt
		hMin  = hMinFraction * dt
	)
	if rtol <= 0 {
		rtol = 1e-6
	}
	for i := range z {
		switch {
		case tol.ATol != nil:
			atol[i] = tol.ATol[i]
		case i < ns:
			atol[i] = rtol * 1e-6 * rho0
		default:
			atol[i] = rtol * math.Max(math.Abs(z[i]), 1)
		}
		atol[i] = math.Max(atol[i], 1e-30)
		if scale[i] = math.Max(math.Abs(z[i]), atol[i]/rtol); scale[i] == 0 {
			scale[i] = 1
		}
	}
	for t < dt {
		h = math.Min(h, dt-t)
		for i := range z {
			wt[i] = atol[i] + rtol*math.Abs(z[i])
		}
		var stepErr error
		if stepErr = sys.backwardEuler(y1, z, h, scale, wt); stepErr == nil {
			if stepErr = sys.backwardEuler(yh, z, 0.5*h, scale, wt); stepErr == nil {
				stepErr = sys.backwardEuler(y2, yh, 0.5*h, scale, wt)
			}
		}
		if stepErr != nil {
			if h *= 0.25; h < hMin {
				nfev = sys.nfev
				if errors.Is(stepErr, ErrTemperatureRange) {
					err = stepErr
				} else {
					err = fmt.Errorf("%w: h = %g at t = %g of %g (%v)", ErrStepTooSmall, h, t, dt, stepErr)
				}
				return
			}
			continue
		}
		var e float64
		for i := range z {
			d := (y2[i] - y1[i]) / wt[i]
			e += d * d
		}
		e = math.Sqrt(e / float64(nz))
		if e <= 1 {
			for i := range z {
				z[i] = 2*y2[i] - y1[i]
			}
			t += h
			h *= math.Min(4, safety/math.Sqrt(math.Max(e, 1e-8)))
		} else {
			if h *= math.Max(0.2, safety/math.Sqrt(e)); h < hMin {
				nfev = sys.nfev
				err = fmt.Errorf("%w: h = %g at t = %g of %g", ErrStepTooSmall, h, t, dt)
				return
			}
		}
	}
	nfev = sys.nfev
	rho := 0.
	for k := 0; k < ns; k++ {
		rho += z[k]
	}
	for k := 0; k < ns; k++ {
		sys.Y[k] = z[k] / rho
	}
	var T float64
	if T, err = m.temperature(z[ns]/rho, sys.Y, sys.tGuess); err != nil {
		return
	}
	copy(cell.RhoY, z[:ns])
	cell.RhoH = z[ns]
	cell.T = T
	return
}

// backwardEuler solves y - y0 - h*f(y) = 0 for y in the variables u = y/scale
func (cs *cellSystem) backwardEuler(y, y0 []float64, h float64, scale, wt []float64) (err error) {
	var (
		n   = len(y0)
		u   = make([]float64, n)
		fu  = make([]float64, n)
		yv  = make([]float64, n)
		jac = mat.NewDense(n, n, nil)
		g   = mat.NewVecDense(n, nil)
		du  = mat.NewVecDense(n, nil)
		lu  mat.LU
	)
	cs.tempErr = nil
	// fScaled evaluates f(u*scale)/scale
	fScaled := func(dst, x []float64) {
		for i := range x {
			yv[i] = x[i] * scale[i]
		}
		cs.rhs(dst, yv)
		for i := range dst {
			dst[i] /= scale[i]
		}
	}
	for i := range u {
		u[i] = y0[i] / scale[i]
	}
	fScaled(fu, u)
	fd.Jacobian(jac, fScaled, u, &fd.JacobianSettings{
		Formula:     fd.Forward,
		OriginValue: fu,
		Step:        1e-7,
	})
	if cs.tempErr != nil {
		return cs.tempErr
	}
	// I - h*J
	jac.Scale(-h, jac)
	for i := 0; i < n; i++ {
		jac.Set(i, i, 1+jac.At(i, i))
	}
	lu.Factorize(jac)
	for iter := 0; iter < maxNewtonIter; iter++ {
		if iter > 0 {
			fScaled(fu, u)
		}
		if cs.tempErr != nil {
			return cs.tempErr
		}
		for i := 0; i < n; i++ {
			g.SetVec(i, -(u[i] - y0[i]/scale[i] - h*fu[i]))
		}
		if err = lu.SolveVecTo(du, false, g); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return fmt.Errorf("%w: %v", ErrNewtonFailed, err)
			}
			err = nil
		}
		var norm float64
		for i := 0; i < n; i++ {
			u[i] += du.AtVec(i)
			d := du.AtVec(i) * scale[i] / wt[i]
			norm += d * d
		}
		if math.IsNaN(norm) {
			break
		}
		if math.Sqrt(norm/float64(n)) < newtonTol {
			for i := range y {
				y[i] = u[i] * scale[i]
			}
			return
		}
	}
	return ErrNewtonFailed
}
