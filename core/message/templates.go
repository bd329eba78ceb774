package message

import (
	"bytes"
	"embed"
	"sync"
	texttmpl "text/template"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/roster"
)

// Template is a predefined course message.
type Template string

const (
	TemplateAnnouncement Template = "announcement"
	TemplateRules        Template = "rules"
	TemplateWelcome      Template = "welcome"
	TemplateMidterm      Template = "midterm"
	TemplateFinal        Template = "final"
	TemplateCourseEnd    Template = "end"
)

var (
	AllTemplates = []Template{
		TemplateAnnouncement, TemplateRules, TemplateWelcome, TemplateMidterm, TemplateFinal, TemplateCourseEnd,
	}

	templateTitles = map[Template]string{
		TemplateAnnouncement: "إعلان الدورة",
		TemplateRules:        "ضوابط الدورة",
		TemplateWelcome:      "بداية الدورة والترحيب",
		TemplateMidterm:      "الاختبارات النصفية",
		TemplateFinal:        "الاختبارات النهائية",
		TemplateCourseEnd:    "نهاية الدورة",
	}

	//go:embed templates/*.txt
	templateFS embed.FS

	templates *texttmpl.Template
	tmplInit  sync.Once
	tmplErr   error

	templateTag  = "msgtemplate"
	templateText = "unknown message template"
)

func (t Template) Valid() bool {
	_, ok := templateTitles[t]
	return ok
}

func (t Template) Title() string { return templateTitles[t] }

// TemplateInfo describes a template to the dashboard.
type TemplateInfo struct {
	Name  Template `json:"name"`
	Title string   `json:"title"`
}

func Templates() []TemplateInfo {
	infos := make([]TemplateInfo, 0, len(AllTemplates))
	for _, t := range AllTemplates {
		infos = append(infos, TemplateInfo{Name: t, Title: t.Title()})
	}
	return infos
}

type templateData struct {
	Course roster.Course
	Halaqa roster.Halaqa
}

func parseTemplates() {
	templates, tmplErr = texttmpl.New("").Option("missingkey=error").ParseFS(templateFS, "templates/*.txt")
}

// Render executes the template for a course circle.
func (t Template) Render(c roster.Course, h roster.Halaqa) (string, error) {
	tmplInit.Do(parseTemplates) // only parse once
	if tmplErr != nil {
		return "", errors.Wrap(tmplErr, "parsing message templates")
	}
	if !t.Valid() {
		return "", core.NewValidationError(nil, core.FieldError{Field: "templates", Error: templateText})
	}
	var buff bytes.Buffer
	if err := templates.ExecuteTemplate(&buff, string(t)+".txt", templateData{Course: c, Halaqa: h}); err != nil {
		return "", errors.Wrapf(err, "rendering template %q", t)
	}
	return buff.String(), nil
}

// InitValidators registers the validators of this package.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(templateTag, func(fl validator.FieldLevel) bool {
		return Template(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, templateTag, templateText)
}
