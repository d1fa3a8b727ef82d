package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	apperrors "soulverse/internal/common/errors"
	"soulverse/internal/common/validation"
	"soulverse/internal/models"
)

type reportOptions struct {
	input      string
	quiet      bool
	topic      string
	manBirth   string
	womanBirth string
	manMBTI    string
	womanMBTI  string
	manBlood   string
	womanBlood string
	manTime    string
	womanTime  string
}

var reportFlags reportOptions

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate one compatibility report",
	Long: `Generate a report and print it to stdout as JSON.

Input comes from --input (a JSON file with the POST /compat body, "-" for stdin) or from
the individual flags. Flags override values read from --input.`,
	Example: `  soulverse report --man-birth 1990-01-01 --woman-birth 1992-03-04 --man-mbti INTJ --woman-mbti ENFP
  echo '{"man_birth":"1990-01-01",...}' | soulverse report --input -`,
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVarP(&reportFlags.input, "input", "i", "", `JSON request file, "-" for stdin`)
	f.BoolVarP(&reportFlags.quiet, "quiet", "q", false, "suppress log output")
	f.StringVar(&reportFlags.topic, "topic", "", "report topic: "+topicNames())
	f.StringVar(&reportFlags.manBirth, "man-birth", "", "man's birth date")
	f.StringVar(&reportFlags.womanBirth, "woman-birth", "", "woman's birth date")
	f.StringVar(&reportFlags.manMBTI, "man-mbti", "", "man's MBTI")
	f.StringVar(&reportFlags.womanMBTI, "woman-mbti", "", "woman's MBTI")
	f.StringVar(&reportFlags.manBlood, "man-blood", "", "man's blood type")
	f.StringVar(&reportFlags.womanBlood, "woman-blood", "", "woman's blood type")
	f.StringVar(&reportFlags.manTime, "man-time", "", "man's birth time")
	f.StringVar(&reportFlags.womanTime, "woman-time", "", "woman's birth time")
}

func runReport(cmd *cobra.Command, args []string) error {
	doc, err := reportDocument(cmd.InOrStdin())
	if err != nil {
		return err
	}

	input, err := validation.ValidateCompatInput(doc)
	if err != nil {
		return fmt.Errorf("invalid input: %s", apperrors.AsStandardError(err).Detail())
	}

	a, err := newApp(reportFlags.quiet)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.compat.Generate(cmd.Context(), input)
	if res.Err != nil {
		return fmt.Errorf("%s: %s", res.Err.Code, res.Err.Detail())
	}

	out := struct {
		Topic  models.Topic                `json:"topic"`
		Report *models.CompatibilityReport `json:"report"`
	}{Topic: res.Topic, Report: res.Report}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

// topicNames lists the accepted --topic values, default first.
func topicNames() string {
	names := make([]string, 0, len(models.Topics()))
	for _, t := range models.Topics() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// reportDocument merges --input with the per-field flags.
func reportDocument(stdin io.Reader) (map[string]interface{}, error) {
	doc := map[string]interface{}{}

	if reportFlags.input != "" {
		var (
			raw []byte
			err error
		)
		if reportFlags.input == "-" {
			raw, err = io.ReadAll(stdin)
		} else {
			raw, err = os.ReadFile(reportFlags.input)
		}
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
			return nil, errors.New("input must be a JSON object")
		}
	}

	for key, val := range map[string]string{
		"topic":       reportFlags.topic,
		"man_birth":   reportFlags.manBirth,
		"woman_birth": reportFlags.womanBirth,
		"man_mbti":    reportFlags.manMBTI,
		"woman_mbti":  reportFlags.womanMBTI,
		"man_blood":   reportFlags.manBlood,
		"woman_blood": reportFlags.womanBlood,
		"man_time":    reportFlags.manTime,
		"woman_time":  reportFlags.womanTime,
	} {
		if val != "" {
			doc[key] = val
		}
	}
	return doc, nil
}
