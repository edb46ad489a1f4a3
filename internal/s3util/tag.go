package s3util

// projectTag is the URL-encoded object tagging string applied to every
// archived image for cost allocation.
const projectTag = "Project=dalle-mcp-server&Source=generated"

// ProjectTagging returns a pointer to the URL-encoded tagging string for
// PutObjectInput.Tagging.
func ProjectTagging() *string {
	t := projectTag
	return &t
}
