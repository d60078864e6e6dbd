package chatclient

import "github.com/arman-d/ChatterBack/internal/models"

// Message and User are the wire types the SDK exchanges with the
// server, re-exported so importers can name them without reaching into
// internal packages.
type (
	Message = models.Message
	User    = models.User
)
