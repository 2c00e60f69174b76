// File: internal/report/junit.go
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

const suiteName = "pagepilot"

// junitReporter renders runs as a JUnit-style testsuite, one testcase
// per run. CI systems then surface failed flows the same way they
// surface failed tests.
type junitReporter struct {
	writer  io.WriteCloser
	reports []*schemas.RunReport
}

func (r *junitReporter) Write(report *schemas.RunReport) error {
	if report == nil {
		return fmt.Errorf("report: nil run report")
	}
	r.reports = append(r.reports, report)
	return nil
}

func (r *junitReporter) Close() error {
	defer r.writer.Close()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suites := doc.CreateElement("testsuites")
	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", suiteName)
	suite.CreateAttr("tests", strconv.Itoa(len(r.reports)))

	failures := 0
	var total time.Duration
	for _, rep := range r.reports {
		total += rep.Elapsed

		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", fmt.Sprintf("%s: %s", rep.Flow, rep.Target))
		tc.CreateAttr("classname", suiteName+"."+string(rep.Flow))
		tc.CreateAttr("time", seconds(rep.Elapsed))

		if rep.Strategy != schemas.StrategyNone {
			props := tc.CreateElement("properties")
			addProperty(props, "strategy", string(rep.Strategy))
			addProperty(props, "attempts", strconv.Itoa(rep.Attempts))
			addProperty(props, "run_id", rep.RunID)
		}

		if !rep.Success {
			failures++
			failure := tc.CreateElement("failure")
			failure.CreateAttr("message", failureMessage(rep))
			failure.CreateAttr("type", "ResolutionExhausted")
		}
	}
	suite.CreateAttr("failures", strconv.Itoa(failures))
	suite.CreateAttr("time", seconds(total))

	doc.Indent(2)
	if _, err := doc.WriteTo(r.writer); err != nil {
		return fmt.Errorf("report: write junit: %w", err)
	}
	return nil
}

func addProperty(parent *etree.Element, name, value string) {
	prop := parent.CreateElement("property")
	prop.CreateAttr("name", name)
	prop.CreateAttr("value", value)
}

func failureMessage(rep *schemas.RunReport) string {
	if rep.Error != "" {
		return rep.Error
	}
	return fmt.Sprintf("%s did not reach the expected page state", rep.Flow)
}

// seconds renders a duration the way JUnit consumers expect: fractional
// seconds with millisecond precision.
func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
