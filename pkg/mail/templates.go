package mail

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/telekom/form-relay/pkg/validation"
)

var (
	submissionTemplate = template.New("submission").Funcs(sprig.TxtFuncMap())

	//go:embed templates/submission.txt
	submissionTemplateRaw string
)

func init() {
	if _, err := submissionTemplate.Parse(submissionTemplateRaw); err != nil {
		panic(err)
	}
}

func render(t *template.Template, p any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, p)
	return b.String(), err
}

// RenderSubmission renders the notification body for a submission.
func RenderSubmission(sub validation.Submission) (string, error) {
	return render(submissionTemplate, sub)
}
