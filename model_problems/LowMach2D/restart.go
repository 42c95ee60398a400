package LowMach2D

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RestartState is the scalar data a restarted run needs beyond the level states
type RestartState struct {
	Step          int                `yaml:"step"`
	Time          float64            `yaml:"time"`
	DtOld         float64            `yaml:"dt_old"`
	PAmbOld       float64            `yaml:"p_amb_old"`
	PAmbNew       float64            `yaml:"p_amb_new"`
	Dp0dt         float64            `yaml:"dp0dt"`
	TypicalValues map[string]float64 `yaml:"typical_values"`
}

func (h *Hierarchy) RestartState() *RestartState {
	return &RestartState{
		Step:          h.Step,
		Time:          h.Time,
		DtOld:         h.DtOld,
		PAmbOld:       h.Ambient.POld,
		PAmbNew:       h.Ambient.PNew,
		Dp0dt:         h.Ambient.Dp0dt,
		TypicalValues: h.Typical.Map(),
	}
}

// ApplyRestart restores the clock, the ambient pressure and the typical values
func (h *Hierarchy) ApplyRestart(rs *RestartState) {
	h.Step, h.Time, h.DtOld = rs.Step, rs.Time, rs.DtOld
	h.Ambient.POld, h.Ambient.PNew, h.Ambient.Dp0dt = rs.PAmbOld, rs.PAmbNew, rs.Dp0dt
	for _, lv := range h.Levels {
		lv.TimeOld, lv.TimeNew = rs.Time, rs.Time
	}
	h.SetTypicalValues(rs)
}

func WriteRestartState(path string, rs *RestartState) (err error) {
	var data []byte
	if data, err = yaml.Marshal(rs); err != nil {
		return fmt.Errorf("encoding restart state: %w", err)
	}
	if err = os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing restart state: %w", err)
	}
	return
}

func ReadRestartState(path string) (rs *RestartState, err error) {
	var data []byte
	if data, err = os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("reading restart state: %w", err)
	}
	rs = &RestartState{}
	if err = yaml.Unmarshal(data, rs); err != nil {
		return nil, fmt.Errorf("parsing restart state: %w", err)
	}
	if rs.PAmbOld <= 0 || rs.PAmbNew <= 0 {
		return nil, fmt.Errorf("restart state %s has no ambient pressure", path)
	}
	return
}
