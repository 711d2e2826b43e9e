// Package main provides the CLI entry point for personaface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/personaface/internal/anim"
	"github.com/normanking/personaface/internal/config"
	"github.com/normanking/personaface/internal/engine"
	"github.com/normanking/personaface/internal/logging"
)

// Version information (set at build time)
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "personaface",
		Short: "Real-time synthetic persona facial animation engine",
		Long: `personaface animates a synthetic persona's face in real time:
conversational state, emotion, archetype-driven idle motion, and
audio-driven lip-sync composed into a stream of blendshape frames
an external renderer consumes over WebSocket.`,
		Version: version,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the animation engine and frame stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, logger, err := buildEngine()
			if err != nil {
				return err
			}
			defer logger.Close()

			config.Watch(func(cfg *config.Config) {
				eng.Reload(cfg)
			})

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return eng.Run(ctx)
		},
	}

	var sayEmotion string
	var sayPersona string
	sayCmd := &cobra.Command{
		Use:   "say [text]",
		Short: "Speak one utterance and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, logger, err := buildEngine()
			if err != nil {
				return err
			}
			defer logger.Close()

			if sayPersona != "" {
				if err := eng.SetPersona(sayPersona); err != nil {
					return err
				}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			go eng.Run(ctx)

			if err := eng.Speak(ctx, args[0], anim.Emotion(sayEmotion)); err != nil {
				return err
			}

			// Wait for playback to start, then finish.
			deadline := time.After(10 * time.Second)
			for !eng.IsSpeaking() {
				select {
				case <-deadline:
					return fmt.Errorf("playback never started")
				case <-ctx.Done():
					return nil
				case <-time.After(50 * time.Millisecond):
				}
			}
			for eng.IsSpeaking() {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(100 * time.Millisecond):
				}
			}
			return nil
		},
	}
	sayCmd.Flags().StringVarP(&sayEmotion, "emotion", "e", "", "emotion label (auto-detected when empty)")
	sayCmd.Flags().StringVarP(&sayPersona, "persona", "p", "", "persona id (config default when empty)")

	personasCmd := &cobra.Command{
		Use:   "personas",
		Short: "List available personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.AvailablePersonas() {
				fmt.Printf("  %-10s %-10s voice=%-8s archetype=%s\n", p.ID, p.Name, p.VoiceID, p.Archetype)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, sayCmd, personasCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildEngine() (*engine.Engine, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}

	eng, err := engine.New(cfg, logger.Zerolog())
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	return eng, logger, nil
}
