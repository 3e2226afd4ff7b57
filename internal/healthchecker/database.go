package healthchecker

import (
	"github.com/voxaide/switchboard/internal/database"
)

func CheckDB() error {
	_, err := database.NewDatabase()
	return err
}
