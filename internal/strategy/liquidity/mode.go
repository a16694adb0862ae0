package liquidity

import (
	"fmt"

	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/trade"
)

// Mode selects the entry trigger and exit management.
type Mode string

const (
	Standard    Mode = "standard"
	Agro        Mode = "agro"
	ATR         Mode = "atr"
	ATRAgro     Mode = "atr_agro"
	ATRPartial1 Mode = "atr_partial_1"
	ATRPartial2 Mode = "atr_partial_2"
)

// Modes lists every mode in sweep order.
func Modes() []Mode {
	return []Mode{Standard, Agro, ATR, ATRAgro, ATRPartial1, ATRPartial2}
}

// Settings is what a mode resolves to.
type Settings struct {
	RiskReward float64
	// ATREntry places a limit order one ATR beyond the block instead of
	// waiting for a close back inside it.
	ATREntry bool
	Partial  *trade.Partial
	Label    string
	// Ratio is the human-readable target description.
	Ratio string
}

// Settings resolves m. Unknown modes fail with core.ErrUnknownStrategy.
func (m Mode) Settings() (Settings, error) {
	switch m {
	case Standard:
		return Settings{RiskReward: 2, Label: "TL Trap", Ratio: "2R"}, nil
	case Agro:
		return Settings{RiskReward: 3, Label: "TL Agro", Ratio: "3R"}, nil
	case ATR:
		return Settings{RiskReward: 2, ATREntry: true, Label: "TL ATR", Ratio: "2R"}, nil
	case ATRAgro:
		return Settings{RiskReward: 3, ATREntry: true, Label: "TL ATR Agro", Ratio: "3R"}, nil
	case ATRPartial1:
		return Settings{ATREntry: true, Partial: &trade.Partial{FirstR: 3, SecondR: 5}, Label: "TL Partial", Ratio: "3R + 5R"}, nil
	case ATRPartial2:
		return Settings{ATREntry: true, Partial: &trade.Partial{FirstR: 2, SecondR: 4}, Label: "TL Partial", Ratio: "2R + 4R"}, nil
	}
	return Settings{}, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("liquidity mode %q", string(m)))
}

// StrategyName is the registry name for m, e.g. "tl_trap_atr_agro".
func (m Mode) StrategyName() string {
	if m == Standard {
		return "tl_trap"
	}
	return "tl_trap_" + string(m)
}

// FinalTarget is the R multiple the last exit aims for.
func (s Settings) FinalTarget() float64 {
	if s.Partial != nil {
		return s.Partial.SecondR
	}
	return s.RiskReward
}

func (s Settings) management() trade.Management {
	return trade.Management{Partial: s.Partial}
}
