package LowMach2D

import (
	"github.com/notargets/golowmach/grid2D"
)

/*
Deferred correction bookkeeping of one pass k, per conserved component:

	rhs     = old + dt (A + (Dn - Dk)/2 + IR)     right hand side of the implicit diffusion
	F       = A + (Dn - Dk)/2 + Dhat             forcing of the reaction integration
	IR      = (new - old)/dt - F                 reaction term lagged into the next pass

The first pass uses Dk = Dn and the instantaneous production rates for IR.
*/
func sdcDiffusionRHS(rhs, old, adv, dn, dk, ir []float64, dt float64) {
	for i := range rhs {
		rhs[i] = old[i] + dt*(adv[i]+0.5*(dn[i]-dk[i])+ir[i])
	}
}

func sdcForcing(f, adv, dn, dk, dhat []float64) {
	for i := range f {
		f[i] = adv[i] + 0.5*(dn[i]-dk[i]) + dhat[i]
	}
}

func sdcReactionTerm(ir, next, old, f []float64, dt float64) {
	for i := range ir {
		ir[i] = (next[i]-old[i])/dt - f[i]
	}
}

// forEachConserved calls f with the valid cell values of every conserved component of a
// state and the matching component of each flux layout array
func forEachConserved(l StateLayout, states []*grid2D.MultiFab, terms []*grid2D.MultiFab,
	f func(states, terms [][]float64)) {
	var (
		ref = terms[0]
	)
	_ = ref.ForEachPatch(func(p int, fab *grid2D.FArray) error {
		var (
			sv = make([][]float64, len(states))
			tv = make([][]float64, len(terms))
		)
		for c := 0; c < l.NFlux(); c++ {
			for n, st := range states {
				sv[n] = st.Fabs[p].Extract(fab.Box, l.StateComp(c), 1)
			}
			for n, t := range terms {
				tv[n] = t.Fabs[p].Extract(fab.Box, c, 1)
			}
			f(sv, tv)
			// terms[0] is the output
			terms[0].Fabs[p].Insert(fab.Box, c, 1, tv[0])
		}
		return nil
	})
}

// SDCDiffusionRHS fills rhs (flux layout) for the implicit diffusion of the current pass
func (ls *LevelState) SDCDiffusionRHS(rhs *grid2D.MultiFab, dt float64) {
	forEachConserved(ls.Layout, []*grid2D.MultiFab{ls.Old},
		[]*grid2D.MultiFab{rhs, ls.Aofs, ls.DiffN, ls.DiffK, ls.IR},
		func(s, t [][]float64) {
			sdcDiffusionRHS(t[0], s[0], t[1], t[2], t[3], t[4], dt)
		})
}

// SDCForcing fills ls.Forcing after the diffusion solve of the current pass
func (ls *LevelState) SDCForcing() {
	forEachConserved(ls.Layout, nil,
		[]*grid2D.MultiFab{ls.Forcing, ls.Aofs, ls.DiffN, ls.DiffK, ls.DiffHat},
		func(_, t [][]float64) {
			sdcForcing(t[0], t[1], t[2], t[3], t[4])
		})
}

// SDCReactionTerm updates ls.IR from the reacted state
func (ls *LevelState) SDCReactionTerm(dt float64) {
	forEachConserved(ls.Layout, []*grid2D.MultiFab{ls.New, ls.Old},
		[]*grid2D.MultiFab{ls.IR, ls.Forcing},
		func(s, t [][]float64) {
			sdcReactionTerm(t[0], s[0], s[1], t[1], dt)
		})
}
