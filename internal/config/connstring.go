// Package config resolves runtime settings that are not plain flags.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/wolfeidau/orgpurge/internal/apperr"
)

// SSMAPI is the subset of the SSM client used to read parameters.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ConnStringSource names where the relational store connection string comes from.
// The first non empty source wins: ConnString, then SSMParameter, then File.
type ConnStringSource struct {
	ConnString   string
	SSMParameter string
	File         string
}

// DatabaseCredentials is the JSON form a stored secret may take instead of a plain connection string.
type DatabaseCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode,omitempty"`
}

// ConnString renders the credentials as a postgres URL.
func (c DatabaseCredentials) ConnString() (string, error) {
	if c.Host == "" || c.Username == "" || c.DBName == "" {
		return "", apperr.Validation("database credentials need host, username and dbname")
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:   "/" + c.DBName,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	}

	return u.String(), nil
}

// ResolveConnString returns the connection string from the first configured source.
// client is only used when the SSM source is selected and may otherwise be nil.
func ResolveConnString(ctx context.Context, src ConnStringSource, client SSMAPI) (string, error) {
	switch {
	case src.ConnString != "":
		return src.ConnString, nil

	case src.SSMParameter != "":
		if client == nil {
			return "", apperr.Validation("SSM client is required to read the database parameter")
		}
		value, err := getParameter(ctx, client, src.SSMParameter)
		if err != nil {
			return "", fmt.Errorf("failed to load database parameter from SSM: %w", err)
		}
		return parseSecret(value)

	case src.File != "":
		data, err := os.ReadFile(src.File)
		if err != nil {
			return "", fmt.Errorf("failed to read database connection file: %w", err)
		}
		return parseSecret(string(data))

	default:
		return "", apperr.Validation("no database connection string configured")
	}
}

// parseSecret accepts either a connection string or a DatabaseCredentials JSON document.
func parseSecret(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.Validation("database connection secret is empty")
	}

	if !strings.HasPrefix(value, "{") {
		return value, nil
	}

	var creds DatabaseCredentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return "", apperr.Wrap(apperr.KindValidation, err, "malformed database credentials")
	}
	return creds.ConnString()
}

// getParameter fetches a decrypted parameter from SSM
func getParameter(ctx context.Context, client SSMAPI, name string) (string, error) {
	output, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if output.Parameter == nil || output.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	return *output.Parameter.Value, nil
}
