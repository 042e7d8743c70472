package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/verdictlabs/verdict/internal/model"
	"github.com/verdictlabs/verdict/internal/service"
)

// ReviewEngine is the slice of the workflow the console needs.
type ReviewEngine interface {
	List(ctx context.Context, domain model.Domain, filter service.ApplicationFilter) ([]model.Application, error)
	HumanDecide(ctx context.Context, id, decision, explanation string) (*model.Application, error)
}

// Console is the interactive terminal session for working through
// applications awaiting human review.
type Console struct {
	engine ReviewEngine
	reader *contextReader
	writer io.Writer
}

// NewConsole creates a review console. Nil reader/writer default to stdin
// and stdout.
func NewConsole(engine ReviewEngine, reader io.Reader, writer io.Writer) *Console {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Console{
		engine: engine,
		reader: newContextReader(reader),
		writer: writer,
	}
}

// Run walks the reviewer through every application awaiting a human decision
// in the given domain, or in all domains when domain is empty.
func (c *Console) Run(ctx context.Context, domain model.Domain) error {
	pending, err := c.pendingReview(ctx, domain)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Fprintln(c.writer, FormatSuccess("No applications waiting for review."))
		return nil
	}

	fmt.Fprintln(c.writer, FormatTitle(fmt.Sprintf("Review queue: %d application(s)", len(pending))))

	decided, skipped := 0, 0
	for i := range pending {
		app := &pending[i]
		fmt.Fprintln(c.writer, RenderBox(
			fmt.Sprintf("Case %s (%d of %d)", app.ID, i+1, len(pending)),
			c.formatCase(app),
		))

		done, err := c.promptDecision(ctx, app)
		if err != nil {
			if err == ErrInputCancelled || err == io.EOF {
				break
			}
			return err
		}
		if done {
			decided++
		} else {
			skipped++
		}
	}

	fmt.Fprintln(c.writer, SubtleStyle.Render(
		fmt.Sprintf("Session finished: %d decided, %d skipped.", decided, skipped)))
	return nil
}

// pendingReview lists the applications whose classification is in but whose
// decision still needs a human.
func (c *Console) pendingReview(ctx context.Context, domain model.Domain) ([]model.Application, error) {
	domains := model.Domains
	if domain != "" {
		domains = []model.Domain{domain}
	}

	var pending []model.Application
	for _, d := range domains {
		apps, err := c.engine.List(ctx, d, service.FilterAll)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s applications: %w", d, err)
		}
		for i := range apps {
			if apps[i].Status == model.StatusPendingHuman {
				pending = append(pending, apps[i])
			}
		}
	}
	return pending, nil
}

func (c *Console) formatCase(app *model.Application) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Domain:    %s\n", app.Domain)
	if app.ApplicantName != "" {
		fmt.Fprintf(&b, "Applicant: %s\n", app.ApplicantName)
	}

	keys := make([]string, 0, len(app.InputFeatures))
	for k := range app.InputFeatures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %-20s %v\n", k, app.InputFeatures[k])
	}

	if app.AIResult != nil {
		verdict := app.AIResult.Decision.Status
		styled := ErrorStyle.Render(verdict)
		if model.OutcomeForLabel(verdict) == model.OutcomePositive {
			styled = SuccessStyle.Render(verdict)
		}
		fmt.Fprintf(&b, "\n%s %s (%.0f%% confidence)\n",
			RobotIcon, styled, app.AIResult.Decision.Confidence*100)
		fmt.Fprintf(&b, "%s\n", app.AIResult.Decision.Reasoning)

		for _, cf := range app.AIResult.Counterfactuals {
			fmt.Fprintf(&b, "  %s\n", SubtleStyle.Render(cf))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// promptDecision reads one decision for app. It reports whether a decision
// was recorded, false meaning the case was skipped.
func (c *Console) promptDecision(ctx context.Context, app *model.Application) (bool, error) {
	for {
		fmt.Fprint(c.writer, FormatPrompt("[A]pprove / [D]eny / [S]kip / [Q]uit"))

		answer, err := c.reader.readLine(ctx)
		if err != nil {
			return false, err
		}

		var decision string
		switch strings.ToLower(answer) {
		case "a", "approve":
			decision = "Approved"
		case "d", "deny":
			decision = "Denied"
		case "s", "skip":
			return false, nil
		case "q", "quit":
			return false, io.EOF
		default:
			fmt.Fprintln(c.writer, FormatWarning("Please answer A, D, S or Q."))
			continue
		}

		fmt.Fprint(c.writer, FormatPrompt("Comment (optional)"))
		comment, err := c.reader.readLine(ctx)
		if err != nil {
			return false, err
		}

		decided, err := c.engine.HumanDecide(ctx, app.ID, decision, comment)
		if err != nil {
			fmt.Fprintln(c.writer, FormatError(fmt.Sprintf("Could not record decision: %v", err)))
			return false, nil
		}

		msg := fmt.Sprintf("Recorded %s for %s", decision, app.ID)
		if decided.IsOverride {
			msg += " (overrides the classifier)"
		}
		fmt.Fprintln(c.writer, FormatSuccess(msg))
		return true, nil
	}
}
