package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	api "github.com/oshokin/emergency-alert/internal/api/grpc/alert"
	"github.com/oshokin/emergency-alert/internal/service/client"
)

func newRegisterCommand() *cobra.Command {
	var request api.RegisterSubjectRequest

	cmd := &cobra.Command{
		Use:   "register <phone> <name>",
		Short: "Register a subject with emergency contacts.",
		Example: `  alertctl register +15550100 Alice --contact "Bob: +15550101" --email alice@example.com
  alertctl register +15550100 Alice --contact +15550101 --medical "Type 1 diabetes"`,
		Args: cobra.ExactArgs(2), //nolint:mnd // Phone and name.
		RunE: func(cmd *cobra.Command, args []string) error {
			request.Phone, request.Name = args[0], args[1]

			return client.Register(cmd.Context(), &options, &request)
		},
	}

	cmd.Flags().StringVar(&request.Email, "email", "", "email address of the subject")
	cmd.Flags().StringVar(&request.MedicalInfo, "medical", "", "medical notes shared with emergency services")
	cmd.Flags().StringArrayVar(&request.Contacts, "contact", nil, `emergency contact as "Name: phone" or a bare phone`)

	return cmd
}

func newContactCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Manage emergency contacts.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add <phone> <contact>",
		Short:   "Append an emergency contact to a subject.",
		Example: `  alertctl contact add +15550100 "Carol: +15550102"`,
		Args:    cobra.ExactArgs(2), //nolint:mnd // Subject phone and contact.
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.AddContact(cmd.Context(), &options, args[0], args[1])
		},
	})

	return cmd
}

func newLocationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "location <phone> <latitude> <longitude>",
		Short: "Record the current location of a subject.",
		Args:  cobra.ExactArgs(3), //nolint:mnd // Phone and coordinates.
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lng, err := parseCoordinates(args[1], args[2])
			if err != nil {
				return err
			}

			return client.UpdateLocation(cmd.Context(), &options, args[0], lat, lng)
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <phone>",
		Short: "Show a subject, its last location and its active alert.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Status(cmd.Context(), &options, args[0])
		},
	}
}

func newSelfTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest <phone>",
		Short: "Check the location service and send test notifications to a subject.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.SelfTest(cmd.Context(), &options, args[0])
		},
	}
}

func parseCoordinates(rawLat, rawLng string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse latitude %q: %w", rawLat, err)
	}

	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse longitude %q: %w", rawLng, err)
	}

	return lat, lng, nil
}
