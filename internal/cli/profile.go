package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/loadcheck/internal/config"
	"github.com/wesleyorama2/loadcheck/internal/profile"
)

// stageView and profileView print durations in their string form.
type stageView struct {
	Target   float64 `yaml:"target"`
	Duration string  `yaml:"duration"`
}

type profileView struct {
	Scenario        profile.Scenario     `yaml:"scenario"`
	SubScenario     profile.SubScenario  `yaml:"sub_scenario,omitempty"`
	Executor        profile.ExecutorType `yaml:"executor"`
	Rate            float64              `yaml:"rate,omitempty"`
	Duration        string               `yaml:"duration,omitempty"`
	StartRate       float64              `yaml:"startRate,omitempty"`
	Stages          []stageView          `yaml:"stages,omitempty"`
	TimeUnit        string               `yaml:"timeUnit"`
	PreAllocatedVUs int                  `yaml:"preAllocatedVUs"`
	MaxVUs          int                  `yaml:"maxVUs"`
	TotalDuration   string               `yaml:"totalDuration"`
}

func newProfileView(d profile.Descriptor, p *profile.ExecutorProfile) profileView {
	view := profileView{
		Scenario:        d.Name,
		SubScenario:     d.SubScenario,
		Executor:        p.Type,
		Rate:            p.Rate,
		StartRate:       p.StartRate,
		TimeUnit:        p.TimeUnit.String(),
		PreAllocatedVUs: p.PreAllocatedVUs,
		MaxVUs:          p.MaxVUs,
		TotalDuration:   p.TotalDuration().String(),
	}
	if p.Duration > 0 {
		view.Duration = p.Duration.String()
	}
	for _, s := range p.Stages {
		view.Stages = append(view.Stages, stageView{Target: s.Target, Duration: s.Duration.String()})
	}
	return view
}

func newProfileCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print the executor profile a run would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}

			desc := settings.Descriptor()
			prof, err := profile.Build(desc)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(newProfileView(desc, prof))
		},
	}
}
