package smtp

// BuildMsg exposes the MIME conversion to the external test package.
var BuildMsg = buildMsg
