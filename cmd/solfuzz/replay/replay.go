package replay

import (
	"os"

	"github.com/Overclock-Validator/solfuzz/pkg/demo"
	"github.com/Overclock-Validator/solfuzz/pkg/fuzz"
	"github.com/segmentio/textio"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "replay <artifact>",
		Short: "Replay a crash input against the demo vault program",
		Args:  cobra.ExactArgs(1),
		Run:   run,
	}

	configPath string
	quiet      bool
)

func init() {
	Cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path of the solfuzz.yaml the input was found with")
	Cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not echo program logs")
}

func run(_ *cobra.Command, args []string) {
	cfg := fuzz.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = fuzz.LoadConfig(configPath); err != nil {
			klog.Exitf("invalid configuration: %s", err)
		}
	}

	input, err := fuzz.ReadArtifact(args[0])
	if err != nil {
		klog.Exitf("failed to read %s: %s", args[0], err)
	}

	runner := fuzz.NewRunner(cfg, demo.Target(), nil)
	var logs *textio.PrefixWriter
	if !quiet {
		logs = textio.NewPrefixWriter(os.Stderr, "program: ")
		runner.LogWriter = logs
	}

	finding, err := runner.Replay(input)
	if logs != nil {
		_ = logs.Flush()
	}
	if err != nil {
		klog.Exitf("replay failed: %s", err)
	}
	if finding == nil {
		klog.Infof("%s does not reproduce a finding", args[0])
		return
	}

	for _, line := range finding.Sequence {
		klog.Infof("  %s", line)
	}
	klog.Exitf("reproduced: %s", finding.Err)
}
