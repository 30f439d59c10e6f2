package validator

import (
	"strings"
	"unicode/utf8"
)

const (
	NicknameMaxLength = 20
	MinAge            = 5
	MaxAge            = 10
)

func ValidateNickname(v *Validator, nickname string) {
	if strings.TrimSpace(nickname) == "" {
		v.AddError("nickname", "please enter a nickname")
		return
	}
	v.Check(utf8.RuneCountInString(nickname) <= NicknameMaxLength, "nickname", "nickname must be 20 characters or fewer")
}

func ValidateAge(v *Validator, age int) {
	v.Check(age >= MinAge && age <= MaxAge, "age", "age must be between 5 and 10")
}

// ValidateProfileInput checks a full create or edit form.
func ValidateProfileInput(v *Validator, nickname string, age int) {
	ValidateNickname(v, nickname)
	ValidateAge(v, age)
}

// ValidateProfilePatch checks only the fields present in a partial update.
func ValidateProfilePatch(v *Validator, nickname *string, age *int) {
	if nickname != nil {
		ValidateNickname(v, *nickname)
	}
	if age != nil {
		ValidateAge(v, *age)
	}
}
