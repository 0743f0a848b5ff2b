package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// API Errors (E001-E009)
	// ============================================

	"E001": {
		Category:   CategoryTransport,
		Message:    "Could not reach the marketplace API",
		Detail:     "The request failed before a response was received.",
		Suggestion: "Check api.baseURL in storefront.json and that the API server is running.",
	},
	"E002": {
		Category: CategoryAPI,
		Message:  DefaultUserMessage,
		Detail:   "The marketplace API answered with a non-success status.",
	},
	"E003": {
		Category: CategoryDecode,
		Message:  "Malformed API response",
		Detail:   "The response body did not match the expected record shape.",
	},

	// ============================================
	// Storage Errors (E010-E019)
	// ============================================

	"E010": {
		Category: CategoryStorage,
		Message:  "Stored data is malformed",
		Detail:   "A persisted value could not be decoded. It is treated as absent.",
	},
	"E011": {
		Category:   CategoryStorage,
		Message:    "Storage backend unavailable",
		Suggestion: "Check the storage section of storefront.json.",
	},
	"E012": {
		Category: CategoryStorage,
		Message:  "Storage closed",
	},

	// ============================================
	// Validation Errors (E020-E029)
	// ============================================

	"E020": {
		Category: CategoryValidation,
		Message:  "Cart is empty",
		Detail:   "Add at least one product before checking out.",
	},
	"E021": {
		Category: CategoryValidation,
		Message:  "Invalid input",
	},

	// ============================================
	// Auth Errors (E030-E039)
	// ============================================

	"E030": {
		Category:   CategoryAuth,
		Message:    "Authentication required",
		Suggestion: "Log in first.",
	},
	"E031": {
		Category: CategoryAuth,
		Message:  "Insufficient permissions",
		Detail:   "The current role is not allowed to perform this action.",
	},

	// ============================================
	// Config Errors (E120-E149)
	// ============================================

	"E120": {
		Category:   CategoryConfig,
		Message:    "Invalid storefront.json",
		Detail:     "The storefront.json file contains invalid JSON or unknown fields.",
		Suggestion: "Check for syntax errors such as missing commas or quotes.",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"E141": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Detail:     "No storefront.json was found in the working directory.",
		Suggestion: "Run 'storefront config init' to write one with defaults.",
	},

	// ============================================
	// CLI Errors (E150-E159)
	// ============================================

	"E150": {
		Category: CategoryCLI,
		Message:  "Invalid command usage",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
