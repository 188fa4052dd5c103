package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fpang/autopost/internal/geocode"
	"github.com/fpang/autopost/internal/media"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <lat> <lng>",
	Short: "Reverse geocode a coordinate the way photo locations are resolved",
	Long: `Coordinates may be decimal degrees or degrees-minutes-seconds with a
hemisphere letter.

Examples:
  autopost geocode 40.4461 -73.9833
  autopost geocode "40 26 46 N" "73 59 0 W"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := media.ParseCoordinate(args[0])
		if err != nil {
			return fmt.Errorf("latitude: %w", err)
		}
		lng, err := media.ParseCoordinate(args[1])
		if err != nil {
			return fmt.Errorf("longitude: %w", err)
		}

		name, err := geocode.NewNominatim().ReverseGeocode(cmd.Context(), lat, lng)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", media.CoordinatesToDMS(lat, lng))
		if name == "" {
			fmt.Println("(no place name)")
			return nil
		}
		fmt.Println(name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
