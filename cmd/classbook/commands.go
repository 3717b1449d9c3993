package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/classbook-api/internal/dto"
	"github.com/noah-isme/classbook-api/internal/models"
	"github.com/noah-isme/classbook-api/internal/service"
	"github.com/noah-isme/classbook-api/pkg/export"
)

const dateLayout = "2006-01-02"

func newAttendanceCmd(env environment, flags *globalFlags) *cobra.Command {
	var (
		classID string
		subject string
		from    string
		to      string
		sortKey string
		order   string
	)
	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Print attendance counts per subject for a class",
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := dto.AttendanceStatisticsQuery{ClassID: classID, Subject: subject, Sort: sortKey, Order: order}
			var err error
			if query.DateFrom, err = parseDate(from, false); err != nil {
				return err
			}
			if query.DateTo, err = parseDate(to, true); err != nil {
				return err
			}

			stats, _, closeFn, err := session(cmd, env, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			resp, err := stats.Attendance(cmd.Context(), query)
			if err != nil {
				return err
			}
			printDiagnostics(cmd.ErrOrStderr(), resp.Diagnostics)
			return printDocument(cmd.OutOrStdout(), service.AttendanceDocument(resp))
		},
	}
	cmd.Flags().StringVar(&classID, "class", "", "class identifier")
	cmd.Flags().StringVar(&subject, "subject", "", "restrict to one subject")
	cmd.Flags().StringVar(&from, "from", "", "first journal date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last journal date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sortKey, "sort", "", "sort key (name or an attendance status)")
	cmd.Flags().StringVar(&order, "order", "", "sort direction (asc, desc)")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func newGradesCmd(env environment, flags *globalFlags) *cobra.Command {
	var (
		classID        string
		subject        string
		assignmentType string
		sortKey        string
		order          string
	)
	cmd := &cobra.Command{
		Use:   "grades",
		Short: "Print weighted final scores for a class",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, _, closeFn, err := session(cmd, env, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			resp, err := stats.Grades(cmd.Context(), dto.GradeStatisticsQuery{
				ClassID: classID,
				Subject: subject,
				Type:    models.AssignmentType(assignmentType),
				Sort:    sortKey,
				Order:   order,
			})
			if err != nil {
				return err
			}
			printDiagnostics(cmd.ErrOrStderr(), resp.Diagnostics)
			return printDocument(cmd.OutOrStdout(), service.GradesDocument(resp))
		},
	}
	cmd.Flags().StringVar(&classID, "class", "", "class identifier")
	cmd.Flags().StringVar(&subject, "subject", "", "restrict to one subject")
	cmd.Flags().StringVar(&assignmentType, "type", "", "restrict grade tables to one assignment type")
	cmd.Flags().StringVar(&sortKey, "sort", "", "sort key (name, finalScore or assignment:<type>:<index>)")
	cmd.Flags().StringVar(&order, "order", "", "sort direction (asc, desc)")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func newReportCmd(env environment, flags *globalFlags) *cobra.Command {
	var (
		classID    string
		studentID  string
		reportType string
		subject    string
		note       string
		format     string
		out        string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a report card or class report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "text" && out == "" {
				return fmt.Errorf("--out is required for %s output", format)
			}

			stats, logr, closeFn, err := session(cmd, env, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			exporter := service.NewExportService(stats, nil, nil, service.ExportConfig{}, logr, nil, nil)
			params := models.ReportJobParams{ClassID: classID, Subject: subject, Note: note, Format: models.ReportFormat(format)}
			if studentID != "" {
				params.StudentID = &studentID
			}
			doc, err := exporter.BuildDocument(cmd.Context(), models.ReportType(strings.ToLower(reportType)), params)
			if err != nil {
				return err
			}
			if format == "text" {
				return printDocument(cmd.OutOrStdout(), doc)
			}

			payload, err := exporter.Render(doc, params.Format)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, payload, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&classID, "class", "", "class identifier")
	cmd.Flags().StringVar(&studentID, "student", "", "student identifier (student reports)")
	cmd.Flags().StringVar(&reportType, "type", string(models.ReportTypeStudent), "report type (student, class_attendance, class_grades)")
	cmd.Flags().StringVar(&subject, "subject", "", "restrict class reports to one subject")
	cmd.Flags().StringVar(&note, "note", "", "teacher's note printed on the report card")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text, csv, pdf)")
	cmd.Flags().StringVar(&out, "out", "", "output file for csv and pdf")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func newTokenCmd(env environment) *cobra.Command {
	var (
		userID    string
		role      string
		studentID string
		email     string
		name      string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userRole := models.UserRole(strings.ToUpper(role))
			if !userRole.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := env.config()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			auth := service.NewAuthService(nil, service.AuthConfig{
				AccessTokenSecret: cfg.JWT.Secret,
				AccessTokenExpiry: cfg.JWT.Expiration,
				Issuer:            cfg.JWT.Issuer,
			})
			token, expiresAt, err := auth.GenerateToken(service.TokenSubject{
				UserID:    userID,
				Role:      userRole,
				Email:     email,
				FullName:  name,
				StudentID: studentID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user identifier")
	cmd.Flags().StringVar(&role, "role", string(models.RoleTeacher), "role (SUPERADMIN, ADMIN, TEACHER, STUDENT)")
	cmd.Flags().StringVar(&studentID, "student", "", "student identifier for STUDENT tokens")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "full name claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, nil
}

func printDocument(w io.Writer, doc export.Document) error {
	payload, err := export.NewTextExporter().RenderDocument(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func printDiagnostics(w io.Writer, diagnostics []models.Diagnostic) {
	for _, diagnostic := range diagnostics {
		fmt.Fprintf(w, "warning [%s]: %s\n", diagnostic.Code, diagnostic.Message)
	}
}
