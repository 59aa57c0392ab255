package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Manu343726/emu8086/cmd/emu"
	"github.com/Manu343726/emu8086/cmd/tools"
	"github.com/Manu343726/emu8086/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "emu8086",
	Short: "A teaching emulator for 16-bit 8086 assembly",
	Long: `emu8086 runs MASM/TASM-style 8086 assembly programs one source line at a
time, with an emulated text screen, keyboard, clock and the usual BIOS and DOS
interrupt services.

Programs can be run to completion, traced, or debugged interactively with
breakpoints, conditions and live register, memory and screen views.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(emu.EmuCmd, tools.ToolsCmd)
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.emu8086.yaml)")
	RootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error or off")
	RootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	RootCmd.PersistentFlags().String("log-file", "", "also write every log record to this file as JSON")
	RootCmd.PersistentFlags().Bool("color", true, "colorize terminal output")

	cobra.CheckErr(viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("log.format", RootCmd.PersistentFlags().Lookup("log-format")))
	cobra.CheckErr(viper.BindPFlag("log.file", RootCmd.PersistentFlags().Lookup("log-file")))
	cobra.CheckErr(viper.BindPFlag("screen.color", RootCmd.PersistentFlags().Lookup("color")))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".emu8086" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".emu8086")
	}

	// EMU8086_LOG_LEVEL overrides log.level
	viper.SetEnvPrefix("EMU8086")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
