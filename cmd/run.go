/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/golowmach/InputParameters"
	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/linsolve"
	"github.com/notargets/golowmach/model_problems/LowMach2D"
	"github.com/notargets/golowmach/utils"
)

type RunLM struct {
	ICFile         string
	RestartFile    string
	CheckpointFile string
	Profile        string
	MaxSteps       int // Overrides the input file when positive
}

const exampleFile = `
########################################
Title: "Premixed hot spot"
NCell: [32, 32]
ProbHi: [0.01, 0.01]
MaxGridSize: 16
BCs: {XLo: periodic, XHi: periodic, YLo: wall, YHi: outflow}
FineLevels:
  - ["16,16,47,47"]
MaxSteps: 100
InitType: HotSpot # Can be "Uniform" or "Layer"
InitT: 300
HotT: 1600
HotRadius: 0.001
HotCenter: [0.005, 0.005]
Composition: {F: 0.05, O: 0.2, N: 0.75}
sdc_iterMAX: 2
cfl: 0.5
########################################
`

// RunCmd advances a hierarchy read from an input file
var RunCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"2D"},
	Short:   "Advance a low Mach reacting flow problem described by an input file",
	Long: `Advance a low Mach reacting flow problem described by an input file.
The scalar restart state (clock, ambient pressure and typical values) can be
written at the end of the run and read back to continue from it.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		rc := &RunLM{
			ICFile:         viper.GetString("inputConditionsFile"),
			RestartFile:    viper.GetString("restart"),
			CheckpointFile: viper.GetString("checkpoint"),
			Profile:        viper.GetString("profile"),
			MaxSteps:       viper.GetInt("steps"),
		}
		switch rc.Profile {
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
		case "":
		default:
			return fmt.Errorf("unknown profile %q, have cpu or mem", rc.Profile)
		}
		var ip *InputParameters.InputParametersLM
		if ip, err = processInput(rc); err != nil {
			return
		}
		ip.Print()
		_, err = RunLowMach(rc, ip)
		return
	},
}

// RestartCmd prints a restart state file
var RestartCmd = &cobra.Command{
	Use:   "restart [file]",
	Short: "Print the scalar state stored in a restart file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var rs *LowMach2D.RestartState
		if rs, err = LowMach2D.ReadRestartState(args[0]); err != nil {
			return
		}
		fmt.Printf("[%d]\t\t\t= Step\n", rs.Step)
		fmt.Printf("%12.6e\t\t= Time\n", rs.Time)
		fmt.Printf("%12.6e\t\t= Previous dt\n", rs.DtOld)
		fmt.Printf("%12.6e\t\t= Ambient pressure\n", rs.PAmbNew)
		fmt.Printf("%12.6e\t\t= dp0/dt\n", rs.Dp0dt)
		for _, name := range sortedKeys(rs.TypicalValues) {
			fmt.Printf("typical[%s] = %g\n", name, rs.TypicalValues[name])
		}
		return
	},
}

func processInput(rc *RunLM) (ip *InputParameters.InputParametersLM, err error) {
	if len(rc.ICFile) == 0 {
		fmt.Printf("Example File:%s\n", exampleFile)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile) in YAML format")
	}
	var data []byte
	if data, err = os.ReadFile(rc.ICFile); err != nil {
		return
	}
	ip = InputParameters.NewInputParametersLM()
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rc.ICFile, err)
	}
	if rc.MaxSteps > 0 {
		ip.MaxSteps = rc.MaxSteps
	}
	if err = ip.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", rc.ICFile, err)
	}
	return
}

// RunLowMach builds the hierarchy, initializes or restarts it and advances it until
// MaxSteps or StopTime is reached
func RunLowMach(rc *RunLM, ip *InputParameters.InputParametersLM) (h *LowMach2D.Hierarchy, err error) {
	var (
		cfg  = ip.Config()
		chem = chemistry.DefaultMechanism()
		ic   LowMach2D.InitialCondition
	)
	geom, bas, err := ip.Geometry()
	if err != nil {
		return
	}
	if ic, err = ip.InitialCondition(chem); err != nil {
		return
	}
	solver := linsolve.NewCGSolver(cfg.LinearSolverRTol, 0)
	if h, err = LowMach2D.NewHierarchy(&cfg, chem, solver, geom, bas, ip.RefRatio); err != nil {
		return
	}
	if err = h.InitData(ic); err != nil {
		return
	}
	if len(rc.RestartFile) != 0 {
		var rs *LowMach2D.RestartState
		if rs, err = LowMach2D.ReadRestartState(rc.RestartFile); err != nil {
			return
		}
		h.ApplyRestart(rs)
		log.Infof("restarted from %s at step %d, t = %.6e", rc.RestartFile, h.Step, h.Time)
	}
	for h.Step < ip.MaxSteps && h.Time < ip.StopTime {
		dt := math.Min(h.ComputeNewDt(), ip.StopTime-h.Time)
		if _, err = h.CoarseTimeStep(dt); err != nil {
			return
		}
		if ip.PlotInt > 0 && h.Step%ip.PlotInt == 0 {
			logPlotRanges(h)
		}
	}
	log.Debugf("memory after step %d: %s", h.Step, utils.GetMemUsage())
	if len(rc.CheckpointFile) != 0 {
		if err = LowMach2D.WriteRestartState(rc.CheckpointFile, h.RestartState()); err != nil {
			return
		}
		log.Infof("wrote restart state for step %d to %s", h.Step, rc.CheckpointFile)
	}
	return
}

// logPlotRanges reports the range of every plot variable on level 0
func logPlotRanges(h *LowMach2D.Hierarchy) {
	for _, name := range h.PlotVariables() {
		mf, err := h.Derive(0, name)
		if err != nil {
			log.Warnf("step %d: %v", h.Step, err)
			continue
		}
		log.Infof("step %d: %-20s [%12.5e, %12.5e]", h.Step, name, mf.Min(0), mf.Max(0))
	}
}

func sortedKeys(m map[string]float64) (keys []string) {
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}

func init() {
	rootCmd.AddCommand(RunCmd)
	rootCmd.AddCommand(RestartCmd)
	RunCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- NCell, FineLevels\n\t- sdc_iterMAX, cfl")
	RunCmd.Flags().StringP("restart", "r", "", "restart state file to continue from")
	RunCmd.Flags().StringP("checkpoint", "c", "", "restart state file written at the end of the run")
	RunCmd.Flags().IntP("steps", "s", 0, "number of coarse steps, overrides MaxSteps when positive")
	RunCmd.Flags().String("profile", "", "write a cpu or mem profile to the working directory")
	for _, name := range []string{"inputConditionsFile", "restart", "checkpoint", "steps", "profile"} {
		_ = viper.BindPFlag(name, RunCmd.Flags().Lookup(name))
	}
}
