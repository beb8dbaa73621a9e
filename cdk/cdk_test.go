package cdk

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/sfntasks/pkg/iam"
)

func TestBindingsExposeConstructors(t *testing.T) {
	t.Parallel()

	_ = StackEnvironment
	_ = NewTaskState
	_ = NewStateMachine
	_ = GrantTaskPolicies
}

func TestPolicyStatementProps(t *testing.T) {
	t.Parallel()

	doc := iam.NewDocument(
		iam.Allow([]string{"lambda:InvokeFunction"}, "arn:aws:lambda:us-east-1:1:function:f", "arn:aws:lambda:us-east-1:1:function:f:*"),
		iam.Allow([]string{"kms:Decrypt"}, "*").WithCondition("StringEquals", "kms:ViaService", "sqs.us-east-1.amazonaws.com"),
	)
	doc.Statement[1].Sid = "Decrypt"

	props := PolicyStatementProps(doc)
	require.Len(t, props, 2)

	require.Equal(t, awsiam.Effect_ALLOW, props[0].Effect)
	require.Equal(t, []string{"lambda:InvokeFunction"}, values(props[0].Actions))
	require.Len(t, *props[0].Resources, 2)
	require.Nil(t, props[0].Conditions)
	require.Nil(t, props[0].Sid)

	require.Equal(t, "Decrypt", *props[1].Sid)
	require.NotNil(t, props[1].Conditions)
	require.Contains(t, *props[1].Conditions, "StringEquals")

	require.Nil(t, PolicyStatementProps(nil))
}

func TestDeref(t *testing.T) {
	t.Parallel()

	s := "us-east-1"
	require.Equal(t, "us-east-1", deref(&s))
	require.Empty(t, deref(nil))

	token := "${Token[AWS.Region.10]}"
	require.Empty(t, literal(&token))
	require.Equal(t, "us-east-1", literal(&s))
}

func values(p *[]*string) []string {
	var out []string
	for _, s := range *p {
		out = append(out, *s)
	}
	return out
}
