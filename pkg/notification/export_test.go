package notification

// HandleForTest exposes the unexported bus handler to the external test package.
var HandleForTest = (*Hub).handle
