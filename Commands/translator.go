package Commands

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/ko"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

type message struct {
	en string
	ko string
}

var defaultMessages = map[string]message{
	"forbidden":           {"You are not allowed to do this", "이 작업을 수행할 권한이 없습니다"},
	"admin_only":          {"Only administrators can do this", "관리자만 수행할 수 있습니다"},
	"not_found":           {"{0} was not found", "{0}을(를) 찾을 수 없습니다"},
	"write_failed":        {"Could not save {0}, please try again", "{0}을(를) 저장하지 못했습니다. 다시 시도해 주세요"},
	"invalid_input":       {"Some fields are invalid", "입력값이 올바르지 않습니다"},
	"illegal_transition":  {"A task in status {0} cannot move to {1}", "{0} 상태의 업무는 {1}(으)로 변경할 수 없습니다"},
	"worklog_transition":  {"This work log has already been {0}", "이미 {0} 처리된 근무 기록입니다"},
	"not_assignee":        {"Only the assignee can change this task", "담당자만 이 업무를 변경할 수 있습니다"},
	"attachments_locked":  {"Attachments cannot change while the task is {0}", "업무가 {0} 상태일 때는 첨부파일을 변경할 수 없습니다"},
	"attachment_missing":  {"That attachment is no longer on the task", "해당 첨부파일이 업무에 없습니다"},
	"tardiness_reason":    {"You are {0} minutes late; please give a reason", "{0}분 지각입니다. 사유를 입력해 주세요"},
	"already_clocked_in":  {"You have already clocked in today", "오늘은 이미 출근 처리되었습니다"},
	"not_owner":           {"You can only clock out of your own work log", "본인의 근무 기록만 퇴근 처리할 수 있습니다"},
	"not_approved":        {"Clock-out is available once your clock-in is approved", "출근 승인 후 퇴근할 수 있습니다"},
	"already_clocked_out": {"You have already clocked out", "이미 퇴근 처리되었습니다"},
	"invalid_date":        {"{0} is not a valid date", "{0}은(는) 올바른 날짜가 아닙니다"},
	"empty_message":       {"Write a message or attach a file", "메시지를 입력하거나 파일을 첨부해 주세요"},
	"message_too_long":    {"Messages are limited to {0} characters", "메시지는 {0}자까지 입력할 수 있습니다"},
	"unknown_user":        {"User {0} does not exist", "사용자 {0}이(가) 존재하지 않습니다"},
	"upload_timeout":      {"The upload took too long and was cancelled", "업로드 시간이 초과되어 취소되었습니다"},
	"upload_failed":       {"Could not upload {0}", "{0}을(를) 업로드하지 못했습니다"},
	"file_too_large":      {"{0} is larger than the {1} limit", "{0}의 크기가 제한({1})을 초과합니다"},
	"no_file_storage":     {"File storage is not configured", "파일 저장소가 설정되지 않았습니다"},
	"empty_batch":         {"Add at least one task", "업무를 하나 이상 추가해 주세요"},
	"bad_request":         {"The request could not be read", "요청을 읽을 수 없습니다"},
	"bad_credentials":     {"Wrong email or password", "이메일 또는 비밀번호가 올바르지 않습니다"},
	"view_unavailable":    {"Live data is unavailable right now, please try again", "실시간 데이터를 불러올 수 없습니다. 잠시 후 다시 시도해 주세요"},
}

// koValidation covers the tags the command inputs use.
var koValidation = map[string]string{
	"required": "{0}은(는) 필수 항목입니다",
	"max":      "{0}의 길이는 최대 {1}입니다",
	"min":      "{0}의 길이는 최소 {1}입니다",
	"oneof":    "{0}은(는) [{1}] 중 하나여야 합니다",
}

// Translator renders command errors in the caller's locale, falling back to
// the configured default and then English.
type Translator struct {
	uni           *ut.UniversalTranslator
	defaultLocale string
}

// NewValidator builds a validator that reports json field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func NewTranslator(defaultLocale string, v *validator.Validate) (*Translator, error) {
	english := en.New()
	uni := ut.New(english, english, ko.New())

	enTrans, _ := uni.GetTranslator("en")
	koTrans, _ := uni.GetTranslator("ko")

	for key, m := range defaultMessages {
		if err := enTrans.Add(key, m.en, true); err != nil {
			return nil, fmt.Errorf("add en %s: %w", key, err)
		}
		if err := koTrans.Add(key, m.ko, true); err != nil {
			return nil, fmt.Errorf("add ko %s: %w", key, err)
		}
	}

	if v != nil {
		if err := en_translations.RegisterDefaultTranslations(v, enTrans); err != nil {
			return nil, fmt.Errorf("register en validation messages: %w", err)
		}
		for tag, text := range koValidation {
			tag, text := tag, text
			err := v.RegisterTranslation(tag, koTrans,
				func(t ut.Translator) error { return t.Add(tag, text, true) },
				func(t ut.Translator, fe validator.FieldError) string {
					msg, err := t.T(tag, fe.Field(), fe.Param())
					if err != nil {
						return fe.Error()
					}
					return msg
				})
			if err != nil {
				return nil, fmt.Errorf("register ko %s: %w", tag, err)
			}
		}
	}

	if defaultLocale == "" {
		defaultLocale = "ko"
	}
	return &Translator{uni: uni, defaultLocale: defaultLocale}, nil
}

func (t *Translator) translator(locale string) ut.Translator {
	for _, candidate := range []string{locale, t.defaultLocale, "en"} {
		if candidate == "" {
			continue
		}
		if trans, found := t.uni.GetTranslator(strings.ToLower(candidate)); found {
			return trans
		}
	}
	return t.uni.GetFallback()
}

// Message renders err for locale. Errors that are not command errors are
// reported with a generic message; their detail stays in the server log.
func (t *Translator) Message(err error, locale string) string {
	if err == nil {
		return ""
	}
	trans := t.translator(locale)

	var ce *CommandError
	if !errors.As(err, &ce) {
		ce = &CommandError{Key: "write_failed", Params: []string{"data"}, Err: err}
	}
	text, terr := trans.T(ce.Key, ce.Params...)
	if terr != nil {
		text = ce.Error()
	}
	if len(ce.validation) > 0 {
		parts := make([]string, 0, len(ce.validation))
		for _, fe := range ce.validation {
			parts = append(parts, fe.Translate(trans))
		}
		text += ": " + strings.Join(parts, "; ")
	}
	return text
}

// Locale picks the first supported language from an Accept-Language header.
func (t *Translator) Locale(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		tag = strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if _, found := t.uni.GetTranslator(tag); found && tag != "" {
			return tag
		}
	}
	return t.defaultLocale
}
