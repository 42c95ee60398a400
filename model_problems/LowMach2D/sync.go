package LowMach2D

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
)

// AmbientPressure is the thermodynamic background pressure of a closed chamber
type AmbientPressure struct {
	POld     float64
	PNew     float64
	Dp0dt    float64
	Thetabar float64
}

func NewAmbientPressure(p0 float64) *AmbientPressure {
	return &AmbientPressure{POld: p0, PNew: p0}
}

// PostCoarseTimeStep makes the new ambient pressure the old one
func (ap *AmbientPressure) PostCoarseTimeStep() {
	ap.POld = ap.PNew
}

/*
ComputeTheta sets theta = 1/(Gamma1 p0) on the valid cells of state, with

	Gamma1 = cp/cv, cv = cp - R/Wbar
*/
func ComputeTheta(state *grid2D.MultiFab, l StateLayout, chem chemistry.ChemDriver, p0 float64, theta *grid2D.MultiFab) {
	_ = theta.ForEachPatch(func(p int, tfab *grid2D.FArray) error {
		var (
			sfab = state.Fabs[p]
			Y    = make([]float64, l.NSpec)
			R    = chem.RUniversal()
		)
		tfab.Box.ForEach(func(i, j int) {
			rho := sfab.Get(i, j, l.Density)
			for k := 0; k < l.NSpec; k++ {
				Y[k] = sfab.Get(i, j, l.Spec(k)) / rho
			}
			T := sfab.Get(i, j, l.Temp)
			cp := chem.MixtureCp(T, Y)
			cv := cp - R/chem.MeanMolecularWeight(Y)
			tfab.Set(i, j, 0, cv/(cp*p0))
		})
		return nil
	})
}

/*
ClosedChamberCorrection computes dp0/dt = int(S)/int(theta) over level 0 so that the
corrected constraint S - theta dp0/dt integrates to zero, applies the correction to S and
advances the ambient pressure over dt.
*/
func (ap *AmbientPressure) ClosedChamberCorrection(S, theta *grid2D.MultiFab, dt float64) float64 {
	var (
		sumS     = S.Sum(0)
		sumTheta = theta.Sum(0)
	)
	ap.Dp0dt = sumS / sumTheta
	ap.Thetabar = sumTheta / float64(S.BA.NumPts())
	ap.PNew = ap.POld + dt*ap.Dp0dt
	S.Saxpy(-ap.Dp0dt, theta, 0, 0, 1, 0)
	log.Debugf("closed chamber: dp0/dt = %.6e, p_amb %.6e -> %.6e", ap.Dp0dt, ap.POld, ap.PNew)
	return ap.Dp0dt
}

// ApplyDp0dt corrects the constraint of a finer level with the level 0 pressure rate
func (ap *AmbientPressure) ApplyDp0dt(S, theta *grid2D.MultiFab) {
	S.Saxpy(-ap.Dp0dt, theta, 0, 0, 1, 0)
}

// SyncCoupler repairs a coarse level after the last subcycle of the finer level above it
type SyncCoupler struct {
	cfg    *Config
	chem   chemistry.ChemDriver
	layout StateLayout
}

func NewSyncCoupler(cfg *Config, chem chemistry.ChemDriver, layout StateLayout) *SyncCoupler {
	return &SyncCoupler{
		cfg:    cfg,
		chem:   chem,
		layout: layout,
	}
}

// Reflux adds the flux register mismatch to the conserved scalars of crse and clears the register
func (sc *SyncCoupler) Reflux(crse *LevelState, fr *grid2D.FluxRegister) (err error) {
	l := sc.layout
	if err = fr.Reflux(crse.New, 0, l.Density, l.NFlux()); err != nil {
		return fmt.Errorf("reflux onto level %d: %w", crse.Level, err)
	}
	fr.Clear()
	return
}

// AvgDown overwrites coarse cells covered by fine with the average of the fine cells, then
// recovers the coarse temperature from the averaged enthalpy
func (sc *SyncCoupler) AvgDown(crse, fine *LevelState, ratio int) {
	var (
		l = sc.layout
	)
	grid2D.AverageDown(fine.New, crse.New, ratio, 0, 0, l.NComp)
	grid2D.AverageDown(fine.Press, crse.Press, ratio, 0, 0, 1)
	grid2D.AverageDown(fine.DivuNew, crse.DivuNew, ratio, 0, 0, 1)
	if sc.cfg.AvgDownChem {
		grid2D.AverageDown(fine.FuncCount, crse.FuncCount, ratio, 0, 0, 1)
		grid2D.AverageDown(fine.RhoYdot, crse.RhoYdot, ratio, 0, 0, l.NSpec)
	}
	RhoHToTemp(crse.New, l, sc.chem, sc.cfg.TempMin, sc.cfg.TempMax, 0)
}

// SyncLevels refluxes then averages down one fine/coarse pair. Averaging first would
// overwrite corrected cells, so there is no other public ordering.
func (sc *SyncCoupler) SyncLevels(crse, fine *LevelState, fr *grid2D.FluxRegister, ratio int) (err error) {
	if err = sc.Reflux(crse, fr); err != nil {
		return
	}
	sc.AvgDown(crse, fine, ratio)
	return
}
