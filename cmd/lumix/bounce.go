package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	bounceArrangement arrangement
	bounceDuration    float64
	bounceOutput      string
	bouncePCM32       bool
)

var bounceCmd = &cobra.Command{
	Use:     "bounce",
	Short:   "Render an arrangement offline into a .wav file",
	Example: `  lumix bounce --audio 1:drums.wav --midi 2:bass.mid --soundfont gm.sf2 -o mix.wav`,
	RunE: func(c *cobra.Command, args []string) error {
		s, err := bounceArrangement.build(cfg, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		duration := bounceDuration
		if duration <= 0 {
			duration = length(s) + playTail.Seconds()
		}
		f, err := os.Create(bounceOutput)
		if err != nil {
			return fmt.Errorf("cannot create output: %w", err)
		}
		err = s.Bounce(f, duration, !bouncePCM32)
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if err != nil {
			return err
		}
		if info, err := os.Stat(bounceOutput); err == nil {
			logger.Info("bounced",
				zap.String("file", bounceOutput),
				zap.Float64("seconds", duration),
				zap.String("size", humanize.Bytes(uint64(info.Size()))))
		}
		return nil
	},
}

func init() {
	bounceArrangement.register(bounceCmd)
	f := bounceCmd.Flags()
	f.Float64Var(&bounceDuration, "duration", 0, "seconds to render; 0 renders until the last clip ends")
	f.StringVarP(&bounceOutput, "output", "o", "bounce.wav", "output .wav file")
	f.BoolVar(&bouncePCM32, "pcm32", false, "write 32-bit samples instead of 16-bit")
	rootCmd.AddCommand(bounceCmd)
}
