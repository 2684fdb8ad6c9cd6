package ability

import "osgpt/pkg/schema"

// Result is the uniform outcome of an ability call. Every call yields one,
// success or failure; abilities communicate problems through Message, never
// by escaping the invoker.
type Result struct {
	// Ability and Args echo the call that produced this result, so a result
	// is interpretable on its own in logs and model feedback.
	Ability string
	Args    Args

	Success     bool
	Message     string
	Activities  []schema.Activity
	Attachments []schema.Attachment
}

// OK builds a successful result.
func OK(message string, activities ...schema.Activity) *Result {
	return &Result{Success: true, Message: message, Activities: activities}
}

// Fail builds a failed result.
func Fail(message string) *Result {
	return &Result{Success: false, Message: message}
}

// WithAttachments adds attachments to the result.
func (r *Result) WithAttachments(atts ...schema.Attachment) *Result {
	r.Attachments = append(r.Attachments, atts...)
	return r
}
