package tokenrepo

import "errors"

var ErrNotFound = errors.New("token not found")
