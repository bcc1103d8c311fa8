package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Ad1th/Poster-Website/internal/admin"
	catalogerrors "github.com/Ad1th/Poster-Website/internal/errors"
	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const loadFailedMessage = "Failed to load posters. Please try again later."

func newListCommand(cc *commandContext) *cobra.Command {
	var cached, inStock bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the catalog, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cc.dependencies()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var entries []poster.Entry
			if cached {
				snap, ok, err := deps.Mirror.Snapshot()
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "No cached catalog yet; run posterctl list while the backend is reachable")
					return nil
				}
				fmt.Fprintf(out, "Cached catalog from %s\n", snap.SavedAt.Local().Format(time.DateTime))
				entries = snap.Entries
			} else {
				if err := deps.Store.Load(cmd.Context()); err != nil {
					cc.logger.ErrorContext(cmd.Context(), "Catalog load failed", "error", err)
					return &failure{cause: err, message: loadFailedMessage}
				}
				entries = deps.Store.Entries()
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				if inStock && !e.InStock() {
					continue
				}
				rows = append(rows, []string{
					e.ID.String(),
					e.Name,
					e.PriceLabel(deps.Settings.Catalog.Currency),
					strconv.Itoa(e.Quantity),
					yesNo(e.IsAvailable),
					stockLabel(e),
					string(deps.Resolver.Initial(e).Source),
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No posters found")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Price", "Qty", "Available", "Stock", "Image"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "Show the last catalog saved locally instead of fetching it")
	cmd.Flags().BoolVar(&inStock, "in-stock", false, "Only show posters that can be bought")
	return cmd
}

// posterFlags are the editable fields shared by add and update.
type posterFlags struct {
	name       string
	quantity   int
	price      string
	clearPrice bool
	available  bool
	imageURL   string
	imagePath  string
}

func (f *posterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Poster title")
	cmd.Flags().IntVar(&f.quantity, "quantity", 0, "Units in stock")
	cmd.Flags().StringVar(&f.price, "price", "", "Unit price, e.g. 499 or 12.50")
	cmd.Flags().BoolVar(&f.available, "available", true, "Whether the poster is offered")
	cmd.Flags().StringVar(&f.imageURL, "image-url", "", "External image URL; a poster has either this or an uploaded image")
	cmd.Flags().StringVar(&f.imagePath, "image", "", "Local image file to upload")
}

func newAddCommand(cc *commandContext) *cobra.Command {
	var f posterFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a poster, optionally uploading its image",
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parsePrice(f.price)
			if err != nil {
				return &failure{cause: err}
			}
			in := poster.NewEntry{
				Name:        f.name,
				Quantity:    f.quantity,
				Price:       price,
				IsAvailable: f.available,
				ImageURL:    f.imageURL,
			}
			var image *admin.ImageFile
			if f.imagePath != "" {
				file, err := readImage(f.imagePath)
				if err != nil {
					return err
				}
				image = &file
			}
			return cc.withPanel(cmd.Context(), func(p *admin.Panel) error {
				created, err := p.AddPoster(cmd.Context(), in, image)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Poster added successfully! (ID %s)\n", created.ID)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newUpdateCommand(cc *commandContext) *cobra.Command {
	var f posterFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of a poster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := poster.ID(args[0])
			patch, err := f.patch(cmd)
			if err != nil {
				return &failure{cause: err}
			}
			return cc.withPanel(cmd.Context(), func(p *admin.Panel) error {
				if err := p.UpdatePoster(cmd.Context(), id, patch); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Poster %s updated\n", id)
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.clearPrice, "clear-price", false, "Remove the price")
	return cmd
}

// patch holds only the flags given on the command line.
func (f *posterFlags) patch(cmd *cobra.Command) (poster.Patch, error) {
	var patch poster.Patch
	flags := cmd.Flags()
	if flags.Changed("name") {
		patch.Name = &f.name
	}
	if flags.Changed("quantity") {
		patch.Quantity = &f.quantity
	}
	if flags.Changed("available") {
		patch.IsAvailable = &f.available
	}
	if flags.Changed("image-url") {
		patch.ImageURL = &f.imageURL
	}
	if f.clearPrice {
		patch.Price = &decimal.NullDecimal{}
	} else if flags.Changed("price") {
		price, err := parsePrice(f.price)
		if err != nil {
			return poster.Patch{}, err
		}
		patch.Price = &price
	}
	return patch, nil
}

func newToggleCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip whether a poster is offered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := poster.ID(args[0])
			deps, err := cc.dependencies()
			if err != nil {
				return err
			}
			return cc.withPanel(cmd.Context(), func(p *admin.Panel) error {
				if _, ok := deps.Store.Entry(id); !ok {
					return fmt.Errorf("poster %s: %w", id, catalogerrors.ErrPosterNotFound)
				}
				if err := p.ToggleAvailability(cmd.Context(), id); err != nil {
					return err
				}
				state := "unknown"
				if e, ok := deps.Store.Entry(id); ok {
					state = availabilityLabel(e.IsAvailable)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Poster %s is now %s\n", id, state)
				return nil
			})
		},
	}
}

func newDeleteCommand(cc *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a poster and its stored image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := poster.ID(args[0])
			if !yes {
				fmt.Fprintf(cmd.ErrOrStderr(), "Are you sure you want to delete poster %s? [y/N] ", id)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if !strings.EqualFold(strings.TrimSpace(answer), "y") {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			return cc.withPanel(cmd.Context(), func(p *admin.Panel) error {
				if err := p.DeletePoster(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Poster %s deleted\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newUploadCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image and print its storage key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := readImage(args[0])
			if err != nil {
				return err
			}
			return cc.withPanel(cmd.Context(), func(p *admin.Panel) error {
				result, err := p.UploadImage(cmd.Context(), file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored as %s\n%s\n", result.StorageKey, result.PublicURL)
				return nil
			})
		},
	}
}

func newReplaceImageCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "replace-image <id> <file>",
		Short: "Upload a new image for a poster and remove the old one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := poster.ID(args[0])
			file, err := readImage(args[1])
			if err != nil {
				return err
			}
			return cc.withPanel(cmd.Context(), func(p *admin.Panel) error {
				result, err := p.ReplaceImage(cmd.Context(), id, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Poster %s now uses %s\n", id, result.StorageKey)
				return nil
			})
		},
	}
}

func parsePrice(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, catalogerrors.NewValidationError("price", "must be a number")
	}
	return decimal.NewNullDecimal(d), nil
}

func readImage(path string) (admin.ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return admin.ImageFile{}, fmt.Errorf("read image: %w", err)
	}
	return admin.ImageFile{Filename: filepath.Base(path), Data: data}, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func stockLabel(e poster.Entry) string {
	if e.InStock() {
		return "In Stock"
	}
	return "Out of Stock"
}

func availabilityLabel(available bool) string {
	if available {
		return "available"
	}
	return "unavailable"
}
