// Package deploy uploads packaged function binaries to AWS Lambda, creating
// the remote function on first deploy and updating code and configuration on
// subsequent ones.
package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const updateWaitTimeout = 2 * time.Minute

// FunctionConfig carries the remote settings of one function. Zero values
// leave the corresponding remote setting untouched on updates.
type FunctionConfig struct {
	MemorySize   int32
	Timeout      int32
	Role         string
	Architecture string
	Env          map[string]string
	Alias        string
}

// Output describes the deployed function.
type Output struct {
	FunctionArn string `json:"function_arn"`
	Version     string `json:"version"`
}

// Deployer drives the Lambda and S3 API calls of a deploy.
type Deployer struct {
	lambda *lambda.Client
	s3     *s3.Client
	logger *slog.Logger
}

func NewDeployer(cfg aws.Config, logger *slog.Logger) *Deployer {
	return &Deployer{
		lambda: lambda.NewFromConfig(cfg),
		s3:     s3.NewFromConfig(cfg),
		logger: logger,
	}
}

// Deploy creates or updates the named function with the given zip archive.
// When s3Bucket is set the archive is staged there first, which lifts the
// direct-upload size limit.
func (d *Deployer) Deploy(ctx context.Context, name string, archive []byte, fc FunctionConfig, s3Bucket string) (*Output, error) {
	code, err := d.functionCode(ctx, name, archive, s3Bucket)
	if err != nil {
		return nil, err
	}

	exists := true
	if _, err := d.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)}); err != nil {
		var notFound *types.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("checking function %s: %w", name, err)
		}
		exists = false
	}

	var out *Output
	if exists {
		out, err = d.update(ctx, name, code, fc)
	} else {
		out, err = d.create(ctx, name, code, fc)
	}
	if err != nil {
		return nil, err
	}

	if fc.Alias != "" {
		if err := d.upsertAlias(ctx, name, fc.Alias, out.Version); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (d *Deployer) create(ctx context.Context, name string, code *types.FunctionCode, fc FunctionConfig) (*Output, error) {
	d.logger.Info("creating new function", "function", name)

	input := &lambda.CreateFunctionInput{
		FunctionName:  aws.String(name),
		Role:          aws.String(fc.Role),
		Runtime:       types.RuntimeProvidedal2023,
		Handler:       aws.String(BootstrapName),
		Code:          code,
		Architectures: []types.Architecture{architecture(fc.Architecture)},
		Publish:       true,
	}
	if fc.MemorySize > 0 {
		input.MemorySize = aws.Int32(fc.MemorySize)
	}
	if fc.Timeout > 0 {
		input.Timeout = aws.Int32(fc.Timeout)
	}
	if len(fc.Env) > 0 {
		input.Environment = &types.Environment{Variables: fc.Env}
	}

	resp, err := d.lambda.CreateFunction(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("creating function %s: %w", name, err)
	}
	return &Output{FunctionArn: aws.ToString(resp.FunctionArn), Version: aws.ToString(resp.Version)}, nil
}

func (d *Deployer) update(ctx context.Context, name string, code *types.FunctionCode, fc FunctionConfig) (*Output, error) {
	d.logger.Info("updating function code", "function", name)

	codeInput := &lambda.UpdateFunctionCodeInput{
		FunctionName:  aws.String(name),
		Architectures: []types.Architecture{architecture(fc.Architecture)},
		Publish:       true,
	}
	codeInput.ZipFile = code.ZipFile
	codeInput.S3Bucket = code.S3Bucket
	codeInput.S3Key = code.S3Key

	resp, err := d.lambda.UpdateFunctionCode(ctx, codeInput)
	if err != nil {
		return nil, fmt.Errorf("updating code of function %s: %w", name, err)
	}

	confInput := d.configurationUpdate(name, fc)
	if confInput != nil {
		waiter := lambda.NewFunctionUpdatedV2Waiter(d.lambda)
		if err := waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)}, updateWaitTimeout); err != nil {
			return nil, fmt.Errorf("waiting for code update of %s: %w", name, err)
		}
		if _, err := d.lambda.UpdateFunctionConfiguration(ctx, confInput); err != nil {
			return nil, fmt.Errorf("updating configuration of function %s: %w", name, err)
		}
	}

	return &Output{FunctionArn: aws.ToString(resp.FunctionArn), Version: aws.ToString(resp.Version)}, nil
}

// configurationUpdate returns nil when nothing beyond the code changed.
func (d *Deployer) configurationUpdate(name string, fc FunctionConfig) *lambda.UpdateFunctionConfigurationInput {
	input := &lambda.UpdateFunctionConfigurationInput{FunctionName: aws.String(name)}
	changed := false

	if fc.MemorySize > 0 {
		input.MemorySize = aws.Int32(fc.MemorySize)
		changed = true
	}
	if fc.Timeout > 0 {
		input.Timeout = aws.Int32(fc.Timeout)
		changed = true
	}
	if fc.Role != "" {
		input.Role = aws.String(fc.Role)
		changed = true
	}
	if len(fc.Env) > 0 {
		input.Environment = &types.Environment{Variables: fc.Env}
		changed = true
	}

	if !changed {
		return nil
	}
	return input
}

func (d *Deployer) upsertAlias(ctx context.Context, name, alias, version string) error {
	_, err := d.lambda.GetAlias(ctx, &lambda.GetAliasInput{
		FunctionName: aws.String(name),
		Name:         aws.String(alias),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return fmt.Errorf("checking alias %s: %w", alias, err)
		}
		_, err = d.lambda.CreateAlias(ctx, &lambda.CreateAliasInput{
			FunctionName:    aws.String(name),
			Name:            aws.String(alias),
			FunctionVersion: aws.String(version),
		})
		if err != nil {
			return fmt.Errorf("creating alias %s: %w", alias, err)
		}
		return nil
	}

	_, err = d.lambda.UpdateAlias(ctx, &lambda.UpdateAliasInput{
		FunctionName:    aws.String(name),
		Name:            aws.String(alias),
		FunctionVersion: aws.String(version),
	})
	if err != nil {
		return fmt.Errorf("updating alias %s: %w", alias, err)
	}
	return nil
}

// functionCode stages the archive on S3 when a bucket is configured,
// otherwise inlines it in the API call.
func (d *Deployer) functionCode(ctx context.Context, name string, archive []byte, s3Bucket string) (*types.FunctionCode, error) {
	if s3Bucket == "" {
		return &types.FunctionCode{ZipFile: archive}, nil
	}

	key := name + ".zip"
	d.logger.Info("uploading function archive", "function", name, "bucket", s3Bucket, "key", key)

	_, err := d.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s3Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(archive),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading archive to s3://%s/%s: %w", s3Bucket, key, err)
	}

	return &types.FunctionCode{S3Bucket: aws.String(s3Bucket), S3Key: aws.String(key)}, nil
}

func architecture(arch string) types.Architecture {
	if arch == "arm64" {
		return types.ArchitectureArm64
	}
	return types.ArchitectureX8664
}
