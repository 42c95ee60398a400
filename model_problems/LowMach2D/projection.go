package LowMach2D

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
	"github.com/notargets/golowmach/linsolve"
	"github.com/notargets/golowmach/types"
)

// Projector enforces the divergence constraint on the face (MAC) and cell velocities of a level
type Projector struct {
	cfg    *Config
	chem   chemistry.ChemDriver
	solver linsolve.LinearSolver
	layout StateLayout
	tv     *TypicalValues
}

func NewProjector(cfg *Config, chem chemistry.ChemDriver, solver linsolve.LinearSolver,
	layout StateLayout, tv *TypicalValues) *Projector {
	return &Projector{
		cfg:    cfg,
		chem:   chem,
		solver: solver,
		layout: layout,
		tv:     tv,
	}
}

// faceSigma sets 1/rho on faces, 2/(rho_L + rho_R), from a density with one filled ghost
func faceSigma(rho *grid2D.MultiFab, comp int) (sigma grid2D.EdgeMultiFabs) {
	sigma = grid2D.NewEdgeMultiFabs(rho.BA, 1, rho.Partitions.ParallelDegree)
	for d := 0; d < 2; d++ {
		_ = sigma[d].ForEachPatch(func(p int, sfab *grid2D.FArray) error {
			rfab := rho.Fabs[p]
			sfab.Box.ForEach(func(i, j int) {
				il, jl, ih, jh := grid2D.FaceNeighbors(d, i, j)
				sfab.Set(i, j, 0, 2/(rfab.Get(il, jl, comp)+rfab.Get(ih, jh, comp)))
			})
			return nil
		})
	}
	return
}

// wallFace reports faces on a physical boundary that carry no normal velocity
func wallFace(geom *grid2D.Geometry, d, i, j int) bool {
	bc, onBoundary := geom.FaceBC(d, i, j)
	return onBoundary && bc != types.BC_Outflow
}

// cellToFace averages the normal component of a cell velocity with filled ghosts to faces
func cellToFace(vel *grid2D.MultiFab, xcomp int, geom *grid2D.Geometry, umac grid2D.EdgeMultiFabs) {
	for d := 0; d < 2; d++ {
		_ = umac[d].ForEachPatch(func(p int, ufab *grid2D.FArray) error {
			vfab := vel.Fabs[p]
			ufab.Box.ForEach(func(i, j int) {
				if wallFace(geom, d, i, j) {
					ufab.Set(i, j, 0, 0)
					return
				}
				il, jl, ih, jh := grid2D.FaceNeighbors(d, i, j)
				ufab.Set(i, j, 0, 0.5*(vfab.Get(il, jl, xcomp+d)+vfab.Get(ih, jh, xcomp+d)))
			})
			return nil
		})
	}
}

// faceGradient sets g = sigma grad(phi) on faces that are not walls
func faceGradient(phi *grid2D.MultiFab, sigma grid2D.EdgeMultiFabs, geom *grid2D.Geometry) (g grid2D.EdgeMultiFabs) {
	g = grid2D.NewEdgeMultiFabs(phi.BA, 1, phi.Partitions.ParallelDegree)
	for d := 0; d < 2; d++ {
		_ = g[d].ForEachPatch(func(p int, gfab *grid2D.FArray) error {
			pfab, sfab := phi.Fabs[p], sigma[d].Fabs[p]
			gfab.Box.ForEach(func(i, j int) {
				if wallFace(geom, d, i, j) {
					return
				}
				il, jl, ih, jh := grid2D.FaceNeighbors(d, i, j)
				gfab.Set(i, j, 0, sfab.Get(i, j, 0)*(pfab.Get(ih, jh, 0)-pfab.Get(il, jl, 0))/geom.Dx[d])
			})
			return nil
		})
	}
	return
}

func (pr *Projector) absTol(geom *grid2D.Geometry) float64 {
	speed := pr.tv.Get(pr.layout.Xvel)
	return pr.cfg.LinearSolverRTol * speed / math.Min(geom.Dx[0], geom.Dx[1])
}

// solve finds phi with -div(sigma grad phi) = S - div(u), u given on faces
func (pr *Projector) solve(ls *LevelState, u grid2D.EdgeMultiFabs, sigma grid2D.EdgeMultiFabs,
	S *grid2D.MultiFab) (phi *grid2D.MultiFab, iters int, err error) {
	var (
		rhs = grid2D.NewMultiFabLike(S, 1, 0)
	)
	phi = grid2D.NewMultiFabLike(S, 1, 1)
	if ls.Level > 0 {
		// Coarse/fine ghosts are homogeneous Dirichlet data for the fine solve
		grid2D.FillCoarseFineFaces(phi, ls.Geom, 0, 1, 0)
	}
	MacDivergence(u, ls.Geom, rhs, 0)
	rhs.LinComb(1, S, 0, -1, rhs, 0, 0, 1, 0)
	res, err := pr.solver.SolveProjection(&linsolve.ProjectionSystem{
		Geom:   ls.Geom,
		Phi:    phi,
		Rhs:    rhs,
		Sigma:  sigma,
		AbsTol: pr.absTol(ls.Geom),
	})
	iters = res.Iterations
	if err != nil {
		err = fmt.Errorf("%w: level %d: %w", ErrProjectionFailed, ls.Level, err)
	}
	return
}

/*
MacProject corrects ls.UMac so that div(UMac) = S, with 1/rho face weights from comp of rho.
On a fine level the potential vanishes at the coarse/fine interface.
*/
func (pr *Projector) MacProject(ls *LevelState, rho *grid2D.MultiFab, comp int, S *grid2D.MultiFab) (iters int, err error) {
	sigma := faceSigma(rho, comp)
	phi, iters, err := pr.solve(ls, ls.UMac, sigma, S)
	if err != nil {
		return
	}
	ls.UMac.Saxpy(-1, faceGradient(phi, sigma, ls.Geom), 0, 0, 1)
	return
}

// viscousTerm sets out = div(mu grad u)/rho for both velocity components on valid cells,
// using every face including physical ones so wall ghosts impose the no slip stress
func viscousTerm(state *grid2D.MultiFab, l StateLayout, mu grid2D.EdgeMultiFabs, mcomp int,
	rho *grid2D.MultiFab, rcomp int, geom *grid2D.Geometry, out *grid2D.MultiFab) {
	flux := grid2D.NewEdgeMultiFabs(state.BA, 2, state.Partitions.ParallelDegree)
	for d := 0; d < 2; d++ {
		_ = flux[d].ForEachPatch(func(p int, ffab *grid2D.FArray) error {
			sfab, mfab := state.Fabs[p], mu[d].Fabs[p]
			ffab.Box.ForEach(func(i, j int) {
				il, jl, ih, jh := grid2D.FaceNeighbors(d, i, j)
				for n := 0; n < 2; n++ {
					grad := (sfab.Get(ih, jh, l.Xvel+n) - sfab.Get(il, jl, l.Xvel+n)) / geom.Dx[d]
					ffab.Set(i, j, n, mfab.Get(i, j, mcomp)*grad)
				}
			})
			return nil
		})
	}
	flux.Divergence(out, geom, 0, 0, 2, 1)
	_ = out.ForEachPatch(func(p int, ofab *grid2D.FArray) error {
		rfab := rho.Fabs[p]
		ofab.Box.ForEach(func(i, j int) {
			for n := 0; n < 2; n++ {
				ofab.Set(i, j, n, ofab.Get(i, j, n)/rfab.Get(i, j, rcomp))
			}
		})
		return nil
	})
}

// pressureGradient sets gp to the central difference gradient of a pressure with filled ghosts
func pressureGradient(press *grid2D.MultiFab, geom *grid2D.Geometry, gp *grid2D.MultiFab) {
	_ = gp.ForEachPatch(func(p int, gfab *grid2D.FArray) error {
		pfab := press.Fabs[p]
		gfab.Box.ForEach(func(i, j int) {
			gfab.Set(i, j, 0, (pfab.Get(i+1, j, 0)-pfab.Get(i-1, j, 0))/(2*geom.Dx[0]))
			gfab.Set(i, j, 1, (pfab.Get(i, j+1, 0)-pfab.Get(i, j-1, 0))/(2*geom.Dx[1]))
		})
		return nil
	})
}

/*
PredictVelocity extrapolates the old velocity to the half time,

	u^{n+1/2} = u^n + dt/2 (-(u.grad)u + div(mu grad u)/rho - grad(p)/rho)

averages it to faces and MAC projects it onto div(u) = S^n + dt/2 dS/dt. ls.Old and
ls.PressOld need filled ghosts, mu is the face viscosity. The returned CFL number is
max |umac| dt/dx.
*/
func (pr *Projector) PredictVelocity(ls *LevelState, mu grid2D.EdgeMultiFabs, mcomp int, dt float64) (cfl float64, err error) {
	var (
		l     = pr.layout
		old   = ls.Old
		conv  = grid2D.NewMultiFabLike(old, 2, 0)
		visc  = grid2D.NewMultiFabLike(old, 2, 0)
		gp    = grid2D.NewMultiFabLike(old, 2, 0)
		vel   = grid2D.NewMultiFabLike(old, 2, 1)
		sHalf = grid2D.NewMultiFabLike(old, 1, 0)
	)
	upwindConvection(old, l, ls.Geom, conv)
	viscousTerm(old, l, mu, mcomp, old, l.Density, ls.Geom, visc)
	pressureGradient(ls.PressOld, ls.Geom, gp)
	vel.Copy(old, l.Xvel, 0, 2, 1)
	_ = vel.ForEachPatch(func(p int, vfab *grid2D.FArray) error {
		var (
			ofab          = old.Fabs[p]
			cfab, dfab, g = conv.Fabs[p], visc.Fabs[p], gp.Fabs[p]
		)
		vfab.Box.ForEach(func(i, j int) {
			rho := ofab.Get(i, j, l.Density)
			for n := 0; n < 2; n++ {
				vfab.Add(i, j, n, 0.5*dt*(cfab.Get(i, j, n)+dfab.Get(i, j, n)-g.Get(i, j, n)/rho))
			}
		})
		return nil
	})
	vel.FillBoundary(ls.Geom, 0, 2)
	vel.FillDomainBoundary(ls.Geom, 0, 2, 0)
	cellToFace(vel, 0, ls.Geom, ls.UMac)
	sHalf.LinComb(1, ls.DivuOld, 0, 0.5*dt, ls.DsdtOld, 0, 0, 1, 0)
	if _, err = pr.MacProject(ls, old, l.Density, sHalf); err != nil {
		return
	}
	if cfl = MaxMacCFL(ls.UMac, ls.Geom, dt); cfl > pr.cfg.CFLMax {
		err = fmt.Errorf("%w: level %d cfl %.3f > %.3f", ErrCFLViolation, ls.Level, cfl, pr.cfg.CFLMax)
	}
	return
}

/*
ApproximateProject projects the cell velocity in comps Xvel, Yvel of state onto
div(u) = S, measuring the divergence of face averages. rhoHalf supplies the face weights.
The potential divided by dt increments ls.Press.
*/
func (pr *Projector) ApproximateProject(ls *LevelState, state, rhoHalf *grid2D.MultiFab, rcomp int,
	S *grid2D.MultiFab, dt float64) (iters int, err error) {
	var (
		l     = pr.layout
		nPar  = state.Partitions.ParallelDegree
		uface = grid2D.NewEdgeMultiFabs(state.BA, 1, nPar)
		sigma = faceSigma(rhoHalf, rcomp)
		phi   *grid2D.MultiFab
	)
	cellToFace(state, l.Xvel, ls.Geom, uface)
	if phi, iters, err = pr.solve(ls, uface, sigma, S); err != nil {
		return
	}
	g := faceGradient(phi, sigma, ls.Geom)
	_ = state.ForEachPatch(func(p int, sfab *grid2D.FArray) error {
		gx, gy := g[0].Fabs[p], g[1].Fabs[p]
		pfab, phiFab := ls.Press.Fabs[p], phi.Fabs[p]
		sfab.Box.ForEach(func(i, j int) {
			sfab.Add(i, j, l.Xvel, -0.5*(gx.Get(i, j, 0)+gx.Get(i+1, j, 0)))
			sfab.Add(i, j, l.Yvel, -0.5*(gy.Get(i, j, 0)+gy.Get(i, j+1, 0)))
			pfab.Add(i, j, 0, phiFab.Get(i, j, 0)/dt)
		})
		return nil
	})
	return
}

/*
Project builds the provisional new velocity from the old one,

	u* = u^n + dt (-(div(umac u) - u div(umac)) + div(mu grad u^n)/rho - grad(p^{n-1/2})/rho)

with rho the half time density, and projects it onto div(u) = ls.DivuNew. The pressure
restarts from PressOld so every SDC pass produces the same kind of increment.
*/
func (pr *Projector) Project(ls *LevelState, mu grid2D.EdgeMultiFabs, mcomp int, dt float64) (iters int, err error) {
	var (
		l       = pr.layout
		old     = ls.Old
		rhoHalf = grid2D.NewMultiFabLike(old, 1, 1)
		conv    = grid2D.NewMultiFabLike(old, 2, 0)
		visc    = grid2D.NewMultiFabLike(old, 2, 0)
		gp      = grid2D.NewMultiFabLike(old, 2, 0)
	)
	rhoHalf.LinComb(0.5, old, l.Density, 0.5, ls.New, l.Density, 0, 1, 1)
	VelocityAdvection(old, l, ls.UMac, ls.Geom, conv)
	viscousTerm(old, l, mu, mcomp, rhoHalf, 0, ls.Geom, visc)
	pressureGradient(ls.PressOld, ls.Geom, gp)
	_ = ls.New.ForEachPatch(func(p int, nfab *grid2D.FArray) error {
		var (
			ofab, rfab    = old.Fabs[p], rhoHalf.Fabs[p]
			cfab, dfab, g = conv.Fabs[p], visc.Fabs[p], gp.Fabs[p]
		)
		nfab.Box.ForEach(func(i, j int) {
			rho := rfab.Get(i, j, 0)
			for n := 0; n < 2; n++ {
				nfab.Set(i, j, l.Xvel+n, ofab.Get(i, j, l.Xvel+n)+
					dt*(cfab.Get(i, j, n)+dfab.Get(i, j, n)-g.Get(i, j, n)/rho))
			}
		})
		return nil
	})
	ls.Press.Copy(ls.PressOld, 0, 0, 1, 1)
	pr.fillVelocityGhosts(ls, ls.New)
	return pr.ApproximateProject(ls, ls.New, rhoHalf, 0, ls.DivuNew, dt)
}

// fillVelocityGhosts refreshes same level and physical velocity ghosts; coarse/fine ghosts
// keep the values they were filled with
func (pr *Projector) fillVelocityGhosts(ls *LevelState, state *grid2D.MultiFab) {
	state.FillBoundary(ls.Geom, pr.layout.Xvel, 2)
	state.FillDomainBoundary(ls.Geom, pr.layout.Xvel, 2, pr.layout.Xvel)
}

/*
CalcDivu evaluates the divergence constraint of state from its diffusion D and reaction
rates R (both in the flux layout),

	S = (D_h - sum_k h_k (D_k + R_k))/(rho cp T) + sum_k (Wbar/W_k)(D_k + R_k)/rho

plus dpdt_factor (p - p_amb)/(dt p_amb), the relaxation of the thermodynamic pressure.
*/
func (pr *Projector) CalcDivu(state, D, R, S *grid2D.MultiFab, pAmb, dt float64) {
	var (
		l  = pr.layout
		ns = l.NSpec
		W  = pr.chem.MolecularWeights()
	)
	_ = S.ForEachPatch(func(p int, sfab *grid2D.FArray) error {
		var (
			st, dfab, rfab = state.Fabs[p], D.Fabs[p], R.Fabs[p]
			Y              = make([]float64, ns)
			hk             = make([]float64, ns)
		)
		sfab.Box.ForEach(func(i, j int) {
			rho := st.Get(i, j, l.Density)
			T := st.Get(i, j, l.Temp)
			for k := 0; k < ns; k++ {
				Y[k] = st.Get(i, j, l.Spec(k)) / rho
			}
			pr.chem.SpeciesEnthalpies(T, hk)
			var (
				cp     = pr.chem.MixtureCp(T, Y)
				wbar   = pr.chem.MeanMolecularWeight(Y)
				thermo = dfab.Get(i, j, l.FluxRhoH())
				comp   float64
			)
			for k := 0; k < ns; k++ {
				src := dfab.Get(i, j, l.FluxSpec(k)) + rfab.Get(i, j, l.FluxSpec(k))
				thermo -= hk[k] * src
				comp += wbar / W[k] * src
			}
			divu := thermo/(rho*cp*T) + comp/rho
			if pr.cfg.DpdtFactor > 0 && dt > 0 {
				divu += pr.cfg.DpdtFactor * (st.Get(i, j, l.RhoRT) - pAmb) / (dt * pAmb)
			}
			sfab.Set(i, j, 0, divu)
		})
		return nil
	})
	log.Debugf("divu: level range [%.4e, %.4e]", S.Min(0), S.Max(0))
}
