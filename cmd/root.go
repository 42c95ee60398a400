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
	"os"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "golowmach",
	Short: "Low Mach number reacting flow solver on block structured refined grids",
	Long: `golowmach advances a low Mach number reacting mixture on a fixed hierarchy of
refined Cartesian levels, coupling advection, differential diffusion and stiff
chemistry with spectral deferred corrections.

Options can be given as flags, as GOLOWMACH_<name> environment variables or in
a configuration file ($HOME/.golowmach.yaml unless --config is used).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setLogLevel()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.golowmach.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every phase of the level advance")
	rootCmd.PersistentFlags().String("log_level", "info", "one of panic, fatal, error, warn, info, debug, trace")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log_level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".golowmach")
	}
	viper.SetEnvPrefix("GOLOWMACH")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func setLogLevel() (err error) {
	var level log.Level
	if level, err = log.ParseLevel(viper.GetString("log_level")); err != nil {
		return
	}
	if viper.GetBool("verbose") && level < log.DebugLevel {
		level = log.DebugLevel
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
	return
}
