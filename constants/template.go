package constants

// DefaultTemplateVersion is the template revision the summary agent processes.
// Categories tagged with any other version are skipped.
const DefaultTemplateVersion = "v1"
