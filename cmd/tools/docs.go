package tools

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/bios"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/interpreter"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
	"github.com/spf13/cobra"
)

var supportedModules = map[string]func() string{
	"cpu.instructions": instructionDocs,
	"bios.services":    serviceDocs,
	"cpu.flags":        flagDocs,
}

func moduleNames() []string {
	names := utils.Keys(supportedModules)
	sort.Strings(names)
	return names
}

var docsCmd = &cobra.Command{
	Use:   "docs module",
	Short: "Show emu8086 documentation",
	Long: `Dumps the documentation of the specified emu8086 module.
By default the tool dumps the documentation to stdout, but it can be redirected to a file using the --output flag.

Supported modules:
` + strings.Join(utils.Map(moduleNames(), func(module string) string { return "  " + module }), "\n"),
	Args:      cobra.MatchAll(cobra.OnlyValidArgs, cobra.ExactArgs(1)),
	ValidArgs: moduleNames(),
	Run: func(cmd *cobra.Command, args []string) {
		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			file, err := os.Create(outputFile)
			if err != nil {
				fmt.Println("Error creating file:", err)
				os.Exit(1)
			}
			defer file.Close()
			fmt.Fprintln(file, supportedModules[args[0]]())
		} else {
			fmt.Println(supportedModules[args[0]]())
		}
	},
}

func init() {
	ToolsCmd.AddCommand(docsCmd)
	docsCmd.Flags().StringP("output", "o", "", "Output file. If not specified, the documentation is dumped to stdout.")
}

// instructionDocs renders the instruction set as a markdown table
func instructionDocs() string {
	var sb strings.Builder
	sb.WriteString("# Instruction set\n\n")
	sb.WriteString("| Mnemonic | Syntax | Description |\n|---|---|---|\n")
	for _, desc := range interpreter.Instructions() {
		fmt.Fprintf(&sb, "| %s | `%s` | %s |\n", desc.Mnemonic, desc.Syntax, desc.Description)
	}
	return sb.String()
}

// serviceDocs renders the interrupt services as a markdown table
func serviceDocs() string {
	var sb strings.Builder
	sb.WriteString("# Interrupt services\n\n")
	sb.WriteString("| INT | AH | Service |\n|---|---|---|\n")
	for _, entry := range bios.New().Reference() {
		function := fmt.Sprintf("%02XH", entry.Function)
		if entry.Any {
			function = "any"
		}
		fmt.Fprintf(&sb, "| %02XH | %s | %s |\n", entry.Vector, function, entry.Desc)
	}
	return sb.String()
}

var flagBits = map[string]int{
	"CF": machine.FlagBitCF,
	"PF": machine.FlagBitPF,
	"AF": machine.FlagBitAF,
	"ZF": machine.FlagBitZF,
	"SF": machine.FlagBitSF,
	"TF": machine.FlagBitTF,
	"IF": machine.FlagBitIF,
	"DF": machine.FlagBitDF,
	"OF": machine.FlagBitOF,
}

// flagLayout draws the FLAGS word with one box per flag bit
func flagLayout() (string, error) {
	fields := utils.Map(machine.FlagNames, func(name string) utils.FrameField {
		return utils.FrameField{Name: name, Begin: flagBits[name], Width: 1}
	})
	sort.Slice(fields, func(i, j int) bool { return fields[i].Begin < fields[j].Begin })

	return utils.Frame{
		Fields:     fields,
		Width:      16,
		Unit:       "bits",
		Layout:     utils.RightToLeft,
		Gap:        "-",
		HideWidths: true,
	}.Draw()
}

// flagDocs renders the FLAGS register layout
func flagDocs() string {
	diagram, err := flagLayout()
	if err != nil {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("# FLAGS register\n\n```\n")
	sb.WriteString(diagram)
	sb.WriteString("```\n\n")
	sb.WriteString("Bit 1 always reads as one. Unused bits are drawn as `-`.\n")
	return sb.String()
}
