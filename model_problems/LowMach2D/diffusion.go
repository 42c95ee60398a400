package LowMach2D

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
	"github.com/notargets/golowmach/linsolve"
)

// DiffusionEngine builds species and enthalpy diffusive fluxes and drives the implicit
// diffusion solves of one level
type DiffusionEngine struct {
	cfg    *Config
	chem   chemistry.ChemDriver
	solver linsolve.LinearSolver
	layout StateLayout
	tv     *TypicalValues
}

func NewDiffusionEngine(cfg *Config, chem chemistry.ChemDriver, solver linsolve.LinearSolver,
	layout StateLayout, tv *TypicalValues) *DiffusionEngine {
	return &DiffusionEngine{
		cfg:    cfg,
		chem:   chem,
		solver: solver,
		layout: layout,
		tv:     tv,
	}
}

// Coefficient layout: rhoD_k, lambda/cp, mu
func (de *DiffusionEngine) nCoef() int {
	return de.layout.NSpec + 2
}

// withLeCorrection reports whether the enthalpy diffusive flux carries the non unity
// Lewis number term
func (de *DiffusionEngine) withLeCorrection() bool {
	return !de.cfg.UnityLe && !de.cfg.DoAddNonunityLeCorrToRhohAdvFlux
}

// calcDiffusivity evaluates the cell transport coefficients over the valid region grown by one
func (de *DiffusionEngine) calcDiffusivity(state *grid2D.MultiFab) (coef *grid2D.MultiFab) {
	var (
		l  = de.layout
		ns = l.NSpec
	)
	coef = grid2D.NewMultiFabLike(state, de.nCoef(), 1)
	_ = coef.ForEachPatch(func(p int, cfab *grid2D.FArray) error {
		var (
			sfab = state.Fabs[p]
			Y    = make([]float64, ns)
			rhoD = make([]float64, ns)
		)
		cfab.GBox.ForEach(func(i, j int) {
			rho := sfab.Get(i, j, l.Density)
			if !(rho > 0) {
				return
			}
			for k := 0; k < ns; k++ {
				Y[k] = sfab.Get(i, j, l.Spec(k)) / rho
			}
			T := sfab.Get(i, j, l.Temp)
			lambda, mu := de.chem.Transport(T, Y, rhoD)
			lcp := lambda / de.chem.MixtureCp(T, Y)
			for k := 0; k < ns; k++ {
				if de.cfg.UnityLe {
					rhoD[k] = lcp
				}
				cfab.Set(i, j, k, rhoD[k])
			}
			cfab.Set(i, j, ns, lcp)
			cfab.Set(i, j, ns+1, mu)
		})
		return nil
	})
	return
}

// faceCoefficients averages cell coefficients to faces with the harmonic mean
func faceCoefficients(coef *grid2D.MultiFab, nPar int) (beta grid2D.EdgeMultiFabs) {
	beta = grid2D.NewEdgeMultiFabs(coef.BA, coef.NComp, nPar)
	for d := 0; d < 2; d++ {
		_ = beta[d].ForEachPatch(func(p int, bfab *grid2D.FArray) error {
			cfab := coef.Fabs[p]
			for n := 0; n < coef.NComp; n++ {
				bfab.Box.ForEach(func(i, j int) {
					il, jl, ih, jh := grid2D.FaceNeighbors(d, i, j)
					a, b := cfab.Get(il, jl, n), cfab.Get(ih, jh, n)
					if a+b > 0 {
						bfab.Set(i, j, n, 2*a*b/(a+b))
					}
				})
			}
			return nil
		})
	}
	return
}

// primitiveFields returns mass fractions and specific enthalpy over the valid region grown by one
func (de *DiffusionEngine) primitiveFields(state *grid2D.MultiFab) (Y, H *grid2D.MultiFab) {
	l := de.layout
	Y = grid2D.NewMultiFabLike(state, l.NSpec, 1)
	H = grid2D.NewMultiFabLike(state, 1, 1)
	_ = Y.ForEachPatch(func(p int, yfab *grid2D.FArray) error {
		sfab, hfab := state.Fabs[p], H.Fabs[p]
		yfab.GBox.ForEach(func(i, j int) {
			rho := sfab.Get(i, j, l.Density)
			if !(rho > 0) {
				return
			}
			for k := 0; k < l.NSpec; k++ {
				yfab.Set(i, j, k, sfab.Get(i, j, l.Spec(k))/rho)
			}
			hfab.Set(i, j, 0, sfab.Get(i, j, l.RhoH)/rho)
		})
		return nil
	})
	return
}

// forEachInteriorFace visits the faces of every patch that are not on a physical boundary
func forEachInteriorFace(e grid2D.EdgeMultiFabs, geom *grid2D.Geometry, f func(d, p, i, j int, fab *grid2D.FArray)) {
	for d := 0; d < 2; d++ {
		_ = e[d].ForEachPatch(func(p int, fab *grid2D.FArray) error {
			fab.Box.ForEach(func(i, j int) {
				if _, onBoundary := geom.FaceBC(d, i, j); onBoundary {
					return
				}
				f(d, p, i, j, fab)
			})
			return nil
		})
	}
}

// addGradientFlux adds -beta*grad(phi) to flux component fcomp on interior faces
func addGradientFlux(flux grid2D.EdgeMultiFabs, fcomp int, phi *grid2D.MultiFab, pcomp int,
	beta grid2D.EdgeMultiFabs, bcomp int, geom *grid2D.Geometry) {
	forEachInteriorFace(flux, geom, func(d, p, i, j int, fab *grid2D.FArray) {
		il, jl, ih, jh := grid2D.FaceNeighbors(d, i, j)
		pfab := phi.Fabs[p]
		grad := (pfab.Get(ih, jh, pcomp) - pfab.Get(il, jl, pcomp)) / geom.Dx[d]
		fab.Add(i, j, fcomp, -beta[d].Fabs[p].Get(i, j, bcomp)*grad)
	})
}

func meanMolecularWeight(Y, W []float64) float64 {
	var invW float64
	for k := range Y {
		invW += Y[k] / W[k]
	}
	return 1 / invW
}

// computeWbarFlux sets the species fluxes -rhoD_k (Y_k/Wbar) grad(Wbar)
func (de *DiffusionEngine) computeWbarFlux(Y *grid2D.MultiFab, beta, wbar grid2D.EdgeMultiFabs, geom *grid2D.Geometry) {
	var (
		l  = de.layout
		ns = l.NSpec
		W  = de.chem.MolecularWeights()
	)
	wbar.SetVal(0, 0, l.NFlux())
	if !de.cfg.UseWbar || de.cfg.HackNoSpecDiff {
		return
	}
	forEachInteriorFace(wbar, geom, func(d, p, i, j int, fab *grid2D.FArray) {
		var (
			yfab           = Y.Fabs[p]
			il, jl, ih, jh = grid2D.FaceNeighbors(d, i, j)
			yl             = make([]float64, ns)
			yr             = make([]float64, ns)
		)
		for k := 0; k < ns; k++ {
			yl[k], yr[k] = yfab.Get(il, jl, k), yfab.Get(ih, jh, k)
		}
		wl, wr := meanMolecularWeight(yl, W), meanMolecularWeight(yr, W)
		gradW := (wr - wl) / geom.Dx[d]
		wf := 0.5 * (wl + wr)
		for k := 0; k < ns; k++ {
			yf := 0.5 * (yl[k] + yr[k])
			fab.Set(i, j, l.FluxSpec(k), -beta[d].Fabs[p].Get(i, j, k)*yf/wf*gradW)
		}
	})
}

/*
AdjustSpecDiffusionFluxes removes the net mass flux of one edge,

	gamma_k -= Yhat_k sum_j gamma_j

with Yhat the non negative edge mass fractions normalized to sum to one. It returns the
residual net flux.
*/
func AdjustSpecDiffusionFluxes(gamma, yEdge []float64) (net float64) {
	var sumY, sumG float64
	for k := range gamma {
		sumY += math.Max(yEdge[k], 0)
		sumG += gamma[k]
	}
	for k := range gamma {
		yHat := 1 / float64(len(gamma))
		if sumY > 0 {
			yHat = math.Max(yEdge[k], 0) / sumY
		}
		gamma[k] -= yHat * sumG
	}
	for k := range gamma {
		net += gamma[k]
	}
	return
}

// adjustFluxes renormalizes the species fluxes on every face and stores the net mass flux
// in the density component
func (de *DiffusionEngine) adjustFluxes(flux grid2D.EdgeMultiFabs, Y *grid2D.MultiFab) (err error) {
	var (
		l  = de.layout
		ns = l.NSpec
	)
	for d := 0; d < 2; d++ {
		e := flux[d].ForEachPatch(func(p int, fab *grid2D.FArray) (err error) {
			var (
				yfab  = Y.Fabs[p]
				gamma = make([]float64, ns)
				yEdge = make([]float64, ns)
			)
			fab.Box.ForEach(func(i, j int) {
				il, jl, ih, jh := grid2D.FaceNeighbors(d, i, j)
				var scale float64
				for k := 0; k < ns; k++ {
					gamma[k] = fab.Get(i, j, l.FluxSpec(k))
					yEdge[k] = 0.5 * (yfab.Get(il, jl, k) + yfab.Get(ih, jh, k))
					scale += math.Abs(gamma[k])
				}
				net := AdjustSpecDiffusionFluxes(gamma, yEdge)
				for k := 0; k < ns; k++ {
					fab.Set(i, j, l.FluxSpec(k), gamma[k])
				}
				fab.Set(i, j, 0, net)
				if de.cfg.CheckMassConservation && err == nil && math.Abs(net) > 1e-10*(scale+1e-300) {
					err = fmt.Errorf("%w: net flux %.3e on face (%d,%d) normal to %d",
						ErrMassConservationViolation, net, i, j, d)
				}
			})
			return
		})
		if e != nil {
			return e
		}
	}
	return
}

// enthalpyCorrection sets the rhoh flux to the non unity Lewis number term
// sum_k h_k (Gamma_k + lambda/cp grad Y_k), using the species fluxes already in flux
func (de *DiffusionEngine) enthalpyCorrection(state, Y *grid2D.MultiFab, beta, flux grid2D.EdgeMultiFabs,
	geom *grid2D.Geometry) {
	var (
		l  = de.layout
		ns = l.NSpec
	)
	flux.SetVal(0, l.FluxRhoH(), 1)
	forEachInteriorFace(flux, geom, func(d, p, i, j int, fab *grid2D.FArray) {
		var (
			sfab, yfab     = state.Fabs[p], Y.Fabs[p]
			il, jl, ih, jh = grid2D.FaceNeighbors(d, i, j)
			hk             = make([]float64, ns)
			lcp            = beta[d].Fabs[p].Get(i, j, ns)
			q              float64
		)
		de.chem.SpeciesEnthalpies(0.5*(sfab.Get(il, jl, l.Temp)+sfab.Get(ih, jh, l.Temp)), hk)
		for k := 0; k < ns; k++ {
			gradY := (yfab.Get(ih, jh, k) - yfab.Get(il, jl, k)) / geom.Dx[d]
			q += hk[k] * (fab.Get(i, j, l.FluxSpec(k)) + lcp*gradY)
		}
		fab.Set(i, j, l.FluxRhoH(), q)
	})
}

/*
ComputeDifferentialDiffusionFluxes evaluates the explicit diffusive fluxes of state, whose
ghost cells must be filled, into flux (and the Wbar part into wbar), and sets D = -div(flux)
in the flux layout.
*/
func (de *DiffusionEngine) ComputeDifferentialDiffusionFluxes(state *grid2D.MultiFab, geom *grid2D.Geometry,
	flux, wbar grid2D.EdgeMultiFabs, D *grid2D.MultiFab) (err error) {
	var (
		l      = de.layout
		nPar   = state.Partitions.ParallelDegree
		beta   = faceCoefficients(de.calcDiffusivity(state), nPar)
		Y, H   = de.primitiveFields(state)
		nf     = l.NFlux()
		nsComp = l.NSpec
	)
	flux.SetVal(0, 0, nf)
	de.computeWbarFlux(Y, beta, wbar, geom)
	if !de.cfg.HackNoSpecDiff {
		for k := 0; k < nsComp; k++ {
			addGradientFlux(flux, l.FluxSpec(k), Y, k, beta, k, geom)
		}
		flux.Saxpy(1, wbar, 1, 1, nsComp)
		if err = de.adjustFluxes(flux, Y); err != nil {
			return
		}
	}
	if de.withLeCorrection() {
		de.enthalpyCorrection(state, Y, beta, flux, geom)
	}
	addGradientFlux(flux, l.FluxRhoH(), H, 0, beta, nsComp, geom)
	flux.Divergence(D, geom, 0, 0, nf, -1)
	return
}

/*
DifferentialDiffusionUpdate solves the implicit diffusion of one SDC pass,

	rho^{n+1} Y_k - dt div(rhoD_k grad Y_k) = rhs_k - dt div(Gamma^W_k)
	rho^{n+1} h   - dt div(lambda/cp grad h) = rhs_h - dt div(non unity Le flux)

ls.New carries rho^{n+1} and the lagged iterate, with ghost cells filled, and receives the
update. The fluxes of the solution are renormalized and stored in SpecDiffusionFluxnp1, the
conserved fields are then set explicitly from their divergence and DiffHat = -div(flux).
*/
func (de *DiffusionEngine) DifferentialDiffusionUpdate(ls *LevelState, rhs *grid2D.MultiFab, dt float64) (iters int, err error) {
	var (
		l     = de.layout
		ns    = l.NSpec
		nf    = l.NFlux()
		geom  = ls.Geom
		state = ls.New
		nPar  = state.Partitions.ParallelDegree
		beta  = faceCoefficients(de.calcDiffusivity(state), nPar)
		flux  = ls.SpecDiffusionFluxnp1
		Y, H  = de.primitiveFields(state)
		phi   = grid2D.NewMultiFabLike(state, 1, 1)
		div   = grid2D.NewMultiFabLike(state, 1, 0)
		srhs  = grid2D.NewMultiFabLike(state, 1, 0)
		rtol  = de.cfg.LinearSolverRTol
	)
	flux.SetVal(0, 0, nf)
	de.computeWbarFlux(Y, beta, ls.SpecDiffusionFluxWbar, geom)
	solve := func(bcomp, rcomp int, absTol float64, name string) (err error) {
		ls.SpecDiffusionFluxWbar.Divergence(div, geom, rcomp, 0, 1, 1)
		srhs.LinComb(1, rhs, rcomp, -dt, div, 0, 0, 1, 0)
		res, err := de.solver.SolveDiffusion(&linsolve.DiffusionSystem{
			Geom:     geom,
			Phi:      phi,
			Rhs:      srhs,
			Alpha:    1,
			A:        state,
			AComp:    l.Density,
			B:        dt,
			Beta:     beta,
			BetaComp: bcomp,
			AbsTol:   absTol,
		})
		iters += res.Iterations
		if err != nil {
			return fmt.Errorf("%w: %s on level %d: %w", ErrDiffusionSolveFailed, name, ls.Level, err)
		}
		log.Debugf("diffusion: %s converged in %d iterations", name, res.Iterations)
		return
	}
	if !de.cfg.HackNoSpecDiff {
		names := de.chem.SpeciesNames()
		for k := 0; k < ns; k++ {
			phi.Copy(Y, k, 0, 1, 1)
			absTol := rtol * de.tv.Get(l.Spec(k)) * de.tv.Get(l.Density)
			if err = solve(k, l.FluxSpec(k), absTol, "species "+names[k]); err != nil {
				return
			}
			Y.Copy(phi, 0, k, 1, 1)
			addGradientFlux(flux, l.FluxSpec(k), phi, 0, beta, k, geom)
		}
		flux.Saxpy(1, ls.SpecDiffusionFluxWbar, 1, 1, ns)
		if err = de.adjustFluxes(flux, Y); err != nil {
			return
		}
	}
	// Species from the renormalized fluxes
	for k := 0; k < ns; k++ {
		flux.Divergence(div, geom, l.FluxSpec(k), 0, 1, 1)
		state.LinComb(1, rhs, l.FluxSpec(k), -dt, div, 0, l.Spec(k), 1, 0)
	}
	if de.cfg.DoSetRhoToSpeciesSum {
		setRhoToSpeciesSum(state, l)
	}
	// Enthalpy
	div.SetVal(0, 0, 1)
	if de.withLeCorrection() {
		de.enthalpyCorrection(state, Y, beta, flux, geom)
		flux.Divergence(div, geom, l.FluxRhoH(), 0, 1, 1)
	}
	srhs.LinComb(1, rhs, l.FluxRhoH(), -dt, div, 0, 0, 1, 0)
	phi.Copy(H, 0, 0, 1, 1)
	res, err := de.solver.SolveDiffusion(&linsolve.DiffusionSystem{
		Geom:     geom,
		Phi:      phi,
		Rhs:      srhs,
		Alpha:    1,
		A:        state,
		AComp:    l.Density,
		B:        dt,
		Beta:     beta,
		BetaComp: ns,
		AbsTol:   rtol * de.tv.Get(l.RhoH),
	})
	iters += res.Iterations
	if err != nil {
		err = fmt.Errorf("%w: rhoh on level %d: %w", ErrDiffusionSolveFailed, ls.Level, err)
		return
	}
	addGradientFlux(flux, l.FluxRhoH(), phi, 0, beta, ns, geom)
	flux.Divergence(div, geom, l.FluxRhoH(), 0, 1, 1)
	state.LinComb(1, rhs, l.FluxRhoH(), -dt, div, 0, l.RhoH, 1, 0)
	flux.Divergence(ls.DiffHat, geom, 0, 0, nf, -1)
	return
}

func setRhoToSpeciesSum(state *grid2D.MultiFab, l StateLayout) {
	_ = state.ForEachPatch(func(p int, fab *grid2D.FArray) error {
		fab.Box.ForEach(func(i, j int) {
			var rho float64
			for k := 0; k < l.NSpec; k++ {
				rho += fab.Get(i, j, l.Spec(k))
			}
			fab.Set(i, j, l.Density, rho)
		})
		return nil
	})
}

/*
AdvectiveLeCorrection adds the non unity Lewis number enthalpy flux of state to the rhoh
component of flux. It carries the term in the advective flux when
do_add_nonunityLe_corr_to_rhoh_adv_flux is set.
*/
func (de *DiffusionEngine) AdvectiveLeCorrection(state *grid2D.MultiFab, geom *grid2D.Geometry, flux grid2D.EdgeMultiFabs) (err error) {
	var (
		l    = de.layout
		nPar = state.Partitions.ParallelDegree
		beta = faceCoefficients(de.calcDiffusivity(state), nPar)
		Y, _ = de.primitiveFields(state)
		tmp  = grid2D.NewEdgeMultiFabs(state.BA, l.NFlux(), nPar)
		wbar = grid2D.NewEdgeMultiFabs(state.BA, l.NFlux(), nPar)
	)
	if de.cfg.UnityLe {
		return
	}
	if !de.cfg.HackNoSpecDiff {
		de.computeWbarFlux(Y, beta, wbar, geom)
		for k := 0; k < l.NSpec; k++ {
			addGradientFlux(tmp, l.FluxSpec(k), Y, k, beta, k, geom)
		}
		tmp.Saxpy(1, wbar, 1, 1, l.NSpec)
		if err = de.adjustFluxes(tmp, Y); err != nil {
			return
		}
	}
	de.enthalpyCorrection(state, Y, beta, tmp, geom)
	flux.Saxpy(1, tmp, l.FluxRhoH(), l.FluxRhoH(), 1)
	return
}
