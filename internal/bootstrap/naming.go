package bootstrap

import (
	"regexp"
	"strings"
)

// Logical resource names. Physical names come from ResourceName and BucketName.
const (
	QueueDocuments   = "FilesToDeleteQueue"
	QueueIdentity    = "CognitoUserQueue"
	QueueNoSQL       = "DynamoDbQueue"
	TopicUserData    = "DeleteUserData"
	BucketDocs       = "Docs"
	BucketThumbnails = "DocsTb"
	TableUserData    = "UserData"
)

var (
	lowerUpper  = regexp.MustCompile(`([a-z])([A-Z])`)
	upperRun    = regexp.MustCompile(`([A-Z])([A-Z][a-z])`)
	letterDigit = regexp.MustCompile(`([a-zA-Z])(\d)`)
	digitLetter = regexp.MustCompile(`(\d)([a-zA-Z])`)
	nonAlnum    = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// ToSnakeCase converts camel case, spaced or punctuated names to lower snake case.
//
//	ToSnakeCase("getCMRules")   // get_cm_rules
//	ToSnakeCase("Hello-World1") // hello_world_1
func ToSnakeCase(s string) string {
	s = lowerUpper.ReplaceAllString(s, "${1}_${2}")
	s = upperRun.ReplaceAllString(s, "${1}_${2}")
	s = letterDigit.ReplaceAllString(s, "${1}_${2}")
	s = digitLetter.ReplaceAllString(s, "${1}_${2}")
	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.ToLower(strings.Trim(s, "_"))
}

// ResourceName returns <stage>-<snake_case name>, or just the snake case name without a stage.
func ResourceName(stage, name string) string {
	if stage == "" {
		return ToSnakeCase(name)
	}
	return stage + "-" + ToSnakeCase(name)
}

// BucketName is ResourceName with underscores replaced, since bucket names only allow hyphens.
func BucketName(stage, name string) string {
	return strings.ReplaceAll(ResourceName(stage, name), "_", "-")
}
