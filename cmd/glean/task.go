package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gleanlabs/glean/internal/schema"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage task definitions",
}

var taskInitFlags struct {
	preset string
	output string
}

var taskInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a task definition file from a built-in preset",
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := schema.Preset(taskInitFlags.preset)
		if err != nil {
			return err
		}
		if err := schema.WriteTask(taskInitFlags.output, task); err != nil {
			return err
		}
		fmt.Printf("wrote task %q to %s\n", task.Name, taskInitFlags.output)
		return nil
	},
}

var taskValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a task definition file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := schema.LoadTask(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("task %q is valid: %d classes, %d examples\n",
			task.Name, len(task.Classes), len(task.Examples))
		return nil
	},
}

var taskPresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List built-in task presets",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range schema.PresetNames() {
			task, err := schema.Preset(name)
			if err != nil {
				continue
			}
			fmt.Printf("%-16s %d classes, %d examples\n", name, len(task.Classes), len(task.Examples))
		}
	},
}

func init() {
	taskInitCmd.Flags().StringVar(&taskInitFlags.preset, "preset", "characters", "preset to start from")
	taskInitCmd.Flags().StringVarP(&taskInitFlags.output, "output", "o", "task.yaml", "output file")

	taskCmd.AddCommand(taskInitCmd)
	taskCmd.AddCommand(taskValidateCmd)
	taskCmd.AddCommand(taskPresetsCmd)
}
