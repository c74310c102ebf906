package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"campaignline/internal/domain"
	"campaignline/internal/engine"
	"campaignline/internal/engine/auth"
	"campaignline/internal/repo"
)

func campaignCmd() *cobra.Command {
	c := &cobra.Command{Use: "campaign", Short: "Manage campaigns"}
	c.AddCommand(campaignCreateCmd())
	c.AddCommand(campaignListCmd())
	c.AddCommand(campaignShowCmd())
	c.AddCommand(campaignUpdateCmd())
	return c
}

const slotFlagHelp = `slot settings, repeatable: "<n>,video=YYYY-MM-DD,sns=YYYY-MM-DD,drive=URL,slides=URL" (n is 0 for standard, 1-4 for weeks)`

func campaignCreateCmd() *cobra.Command {
	var opts engine.CampaignCreateOptions
	var campaignType string
	var slots []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseSlotSpecs(slots)
			if err != nil {
				return err
			}
			opts.Type = domain.CampaignType(campaignType)
			opts.Slots = parsed
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				c, err := e.CreateCampaign(ctx, actor, opts)
				if err != nil {
					return err
				}
				return printCampaign(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "campaign id (generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&campaignType, "type", string(domain.CampaignStandard), "standard or four_week_challenge")
	cmd.Flags().Int64Var(&opts.RewardAmount, "reward", 0, "reward amount")
	cmd.Flags().BoolVar(&opts.RequiresCleanVideo, "requires-clean-video", false, "require a clean (unedited) video with the post")
	cmd.Flags().BoolVar(&opts.RequiresAdCode, "requires-ad-code", false, "require a partnership code with the post")
	cmd.Flags().StringSliceVar(&opts.TargetPlatforms, "platform", nil, "target platforms (instagram, tiktok, youtube, x)")
	cmd.Flags().StringArrayVar(&slots, "slot", nil, slotFlagHelp)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func campaignUpdateCmd() *cobra.Command {
	var title string
	var reward int64
	var cleanVideo, adCode bool
	var platforms, slots []string
	cmd := &cobra.Command{
		Use:   "update <campaign-id>",
		Short: "Update campaign settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.CampaignUpdateOptions{ID: args[0]}
			flags := cmd.Flags()
			if flags.Changed("title") {
				opts.Title = &title
			}
			if flags.Changed("reward") {
				opts.RewardAmount = &reward
			}
			if flags.Changed("requires-clean-video") {
				opts.RequiresCleanVideo = &cleanVideo
			}
			if flags.Changed("requires-ad-code") {
				opts.RequiresAdCode = &adCode
			}
			if flags.Changed("platform") {
				opts.TargetPlatforms = &platforms
			}
			parsed, err := parseSlotSpecs(slots)
			if err != nil {
				return err
			}
			opts.Slots = parsed
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				c, err := e.UpdateCampaign(ctx, actor, opts)
				if err != nil {
					return err
				}
				return printCampaign(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().Int64Var(&reward, "reward", 0, "reward amount")
	cmd.Flags().BoolVar(&cleanVideo, "requires-clean-video", false, "require a clean video with the post")
	cmd.Flags().BoolVar(&adCode, "requires-ad-code", false, "require a partnership code with the post")
	cmd.Flags().StringSliceVar(&platforms, "platform", nil, "target platforms")
	cmd.Flags().StringArrayVar(&slots, "slot", nil, slotFlagHelp)
	return cmd
}

func campaignListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ auth.Actor) error {
				items, err := e.ListCampaigns(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Title", "Type", "Reward", "Clean video", "Ad code", "Platforms")
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Title, c.Type, c.RewardAmount, yesNo(c.RequiresCleanVideo), yesNo(c.RequiresAdCode), strings.Join(c.TargetPlatforms, ",")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func campaignShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign-id>",
		Short: "Show campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ auth.Actor) error {
				c, err := e.GetCampaign(ctx, args[0])
				if err != nil {
					return err
				}
				return printCampaign(c)
			})
		},
	}
}

func printCampaign(c domain.Campaign) error {
	if viper.GetBool("json") {
		return printJSON(c)
	}
	fmt.Printf("%s  %s  (%s, reward %d)\n", c.ID, c.Title, c.Type, c.RewardAmount)
	tw := newTable("Slot", "Video deadline", "SNS deadline", "Guide")
	for _, s := range c.Slots {
		guide := s.GuideDriveURL
		if guide == "" {
			guide = s.GuideSlidesURL
		}
		tw.AppendRow(table.Row{domain.SlotLabel(s.Number), s.VideoDeadline, s.SNSDeadline, guide})
	}
	tw.Render()
	return nil
}

// parseSlotSpecs reads "<n>,video=...,sns=...,drive=...,slides=..." values.
func parseSlotSpecs(specs []string) ([]domain.CampaignSlot, error) {
	var out []domain.CampaignSlot
	for _, spec := range specs {
		parts := strings.Split(spec, ",")
		n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("--slot %q: slot number required first", spec)
		}
		s := domain.CampaignSlot{Number: n}
		for _, kv := range parts[1:] {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, fmt.Errorf("--slot %q: expected key=value, got %q", spec, kv)
			}
			value = strings.TrimSpace(value)
			switch strings.TrimSpace(key) {
			case "video":
				s.VideoDeadline = value
			case "sns":
				s.SNSDeadline = value
			case "drive":
				s.GuideDriveURL = value
			case "slides":
				s.GuideSlidesURL = value
			default:
				return nil, fmt.Errorf("--slot %q: unknown key %q", spec, key)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func applicationCmd() *cobra.Command {
	a := &cobra.Command{Use: "application", Aliases: []string{"app"}, Short: "Manage applications"}
	a.AddCommand(applicationApplyCmd())
	a.AddCommand(applicationListCmd())
	a.AddCommand(applicationShowCmd())
	a.AddCommand(applicationApproveCmd())
	a.AddCommand(applicationDecisionCmd("reject", "Reject a pending application", func(ctx context.Context, e engine.Engine, actor auth.Actor, id, reason string) (domain.Application, error) {
		return e.RejectApplication(ctx, actor, id, reason)
	}))
	a.AddCommand(applicationDecisionCmd("cancel", "Cancel a selected application", func(ctx context.Context, e engine.Engine, actor auth.Actor, id, reason string) (domain.Application, error) {
		return e.CancelApplication(ctx, actor, id, reason)
	}))
	a.AddCommand(applicationDeadlineCmd())
	return a
}

func applicationApplyCmd() *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "apply <campaign-id>",
		Short: "Apply to a campaign as the current actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				app, err := e.Apply(ctx, actor, args[0], channel)
				if err != nil {
					return err
				}
				return printApplication(app)
			})
		},
	}
	cmd.Flags().StringVar(&channel, "main-channel", "", "main channel platform")
	return cmd
}

func applicationListCmd() *cobra.Command {
	var f repo.ApplicationFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				items, err := e.ListApplications(ctx, actor, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Campaign", "Creator", "Status", "Slots", "Revisions")
				for _, app := range items {
					tw.AppendRow(table.Row{app.ID, app.CampaignID, app.UserID, app.Status, slotSummary(app), len(app.RevisionRequests)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.CampaignID, "campaign", "", "campaign filter")
	cmd.Flags().StringVar(&f.UserID, "creator", "", "creator filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum rows")
	return cmd
}

func applicationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <application-id>",
		Short: "Show application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				app, err := e.GetApplication(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printApplication(app)
			})
		},
	}
}

func applicationApproveCmd() *cobra.Command {
	var slots []int
	cmd := &cobra.Command{
		Use:   "approve <application-id>",
		Short: "Select a creator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				app, err := e.ApproveApplication(ctx, actor, args[0], slots)
				if err != nil {
					return err
				}
				return printApplication(app)
			})
		},
	}
	cmd.Flags().IntSliceVar(&slots, "weeks", nil, "weeks to assign in a four-week challenge (default all)")
	return cmd
}

func applicationDecisionCmd(use, short string, fn func(context.Context, engine.Engine, auth.Actor, string, string) (domain.Application, error)) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   use + " <application-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				app, err := fn(ctx, e, actor, args[0], reason)
				if err != nil {
					return err
				}
				return printApplication(app)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason shown to the creator")
	return cmd
}

func applicationDeadlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deadline <application-id> <key> [value]",
		Short: "Override a deadline; omit the value to clear it",
		Long:  "Keys: video_deadline, sns_deadline for standard campaigns; weekN_deadline, weekN_sns_deadline for challenges.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 3 {
				value = args[2]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				app, err := e.SetCustomDeadline(ctx, actor, args[0], args[1], value)
				if err != nil {
					return err
				}
				return printApplication(app)
			})
		},
	}
}

func printApplication(app domain.Application) error {
	if viper.GetBool("json") {
		return printJSON(app)
	}
	fmt.Printf("%s  campaign %s  creator %s  status %s  revision %d\n", app.ID, app.CampaignID, app.UserID, app.Status, app.Revision)
	tw := newTable("Slot", "State", "Video", "SNS")
	for _, s := range app.Slots {
		tw.AppendRow(table.Row{domain.SlotLabel(s.Number), s.State, s.VideoURL, s.SNSURL})
	}
	tw.Render()
	return nil
}

func slotSummary(app domain.Application) string {
	parts := make([]string, 0, len(app.Slots))
	for _, s := range app.Slots {
		parts = append(parts, fmt.Sprintf("%s=%s", domain.SlotLabel(s.Number), s.State))
	}
	return strings.Join(parts, " ")
}

func slotCmd() *cobra.Command {
	s := &cobra.Command{
		Use:   "slot",
		Short: "Move a video slot through its lifecycle",
		Long:  "Slot 0 is the single slot of a standard campaign; 1-4 are the weeks of a challenge.",
	}
	s.AddCommand(slotActionCmd("film", "Mark filming started", func(ctx context.Context, e engine.Engine, actor auth.Actor, id string, slot int) (domain.Application, error) {
		return e.StartFilming(ctx, actor, id, slot)
	}))
	s.AddCommand(slotActionCmd("approve", "Approve the submitted video", func(ctx context.Context, e engine.Engine, actor auth.Actor, id string, slot int) (domain.Application, error) {
		return e.ApproveVideo(ctx, actor, id, slot)
	}))
	s.AddCommand(slotActionCmd("finalize", "Confirm the post and close the slot", func(ctx context.Context, e engine.Engine, actor auth.Actor, id string, slot int) (domain.Application, error) {
		return e.Finalize(ctx, actor, id, slot)
	}))
	s.AddCommand(slotUploadCmd())
	s.AddCommand(slotReviseCmd())
	s.AddCommand(slotSNSCmd())
	return s
}

func slotActionCmd(use, short string, fn func(context.Context, engine.Engine, auth.Actor, string, int) (domain.Application, error)) *cobra.Command {
	var slot int
	cmd := &cobra.Command{
		Use:   use + " <application-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				app, err := fn(ctx, e, actor, args[0], slot)
				if err != nil {
					return err
				}
				return printApplication(app)
			})
		},
	}
	cmd.Flags().IntVar(&slot, "slot", 0, "slot number")
	return cmd
}

func slotUploadCmd() *cobra.Command {
	var slot int
	var file string
	cmd := &cobra.Command{
		Use:   "upload <application-id>",
		Short: "Upload a new video version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, closeFile, err := openUpload(file)
			if err != nil {
				return err
			}
			defer closeFile()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				res, err := e.UploadVideo(ctx, actor, args[0], slot, up)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("stored version %d at %s\n", res.Submission.Version, res.Submission.URL)
				return printApplication(res.Application)
			})
		},
	}
	cmd.Flags().IntVar(&slot, "slot", 0, "slot number")
	cmd.Flags().StringVar(&file, "file", "", "video file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func slotReviseCmd() *cobra.Command {
	var slot int
	var comment, translated string
	cmd := &cobra.Command{
		Use:   "revise <application-id>",
		Short: "Request a revision of the submitted video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				app, err := e.RequestRevision(ctx, actor, args[0], slot, comment, translated)
				if err != nil {
					return err
				}
				return printApplication(app)
			})
		},
	}
	cmd.Flags().IntVar(&slot, "slot", 0, "slot number")
	cmd.Flags().StringVar(&comment, "comment", "", "what needs to change")
	cmd.Flags().StringVar(&translated, "comment-translated", "", "pre-translated comment")
	_ = cmd.MarkFlagRequired("comment")
	return cmd
}

func slotSNSCmd() *cobra.Command {
	var slot int
	var in engine.SNSSubmission
	var cleanFile string
	cmd := &cobra.Command{
		Use:   "sns <application-id>",
		Short: "Submit the published post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cleanFile != "" {
				up, closeFile, err := openUpload(cleanFile)
				if err != nil {
					return err
				}
				defer closeFile()
				in.CleanVideo = &up
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				app, err := e.SubmitSNS(ctx, actor, args[0], slot, in)
				if err != nil {
					return err
				}
				return printApplication(app)
			})
		},
	}
	cmd.Flags().IntVar(&slot, "slot", 0, "slot number")
	cmd.Flags().StringVar(&in.URL, "url", "", "post URL")
	cmd.Flags().StringVar(&in.PartnershipCode, "code", "", "partnership (ad) code")
	cmd.Flags().StringVar(&cleanFile, "clean-video", "", "clean video file")
	return cmd
}

func openUpload(path string) (engine.Upload, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return engine.Upload{}, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return engine.Upload{}, nil, err
	}
	return engine.Upload{
		FileName:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Size:        info.Size(),
		Body:        f,
	}, func() { f.Close() }, nil
}

func progressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <application-id>",
		Short: "Show what the creator sees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				p, err := e.Progress(ctx, actor, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("%s  %s  step %d/6  revisions %d\n", p.ApplicationID, p.Status, p.Step, p.RevisionCount)
				tw := newTable("Slot", "State", "Video due", "SNS due", "Upload", "Post", "Guide")
				for _, s := range p.Slots {
					tw.AppendRow(table.Row{
						domain.SlotLabel(s.Number), s.State,
						deadlineLabel(s.VideoDeadline.Value, s.VideoDeadline.Source),
						deadlineLabel(s.SNSDeadline.Value, s.SNSDeadline.Source),
						yesNo(s.CanUpload), yesNo(s.CanSubmitSNS), yesNo(s.HasGuide),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func deadlineLabel(value, source string) string {
	if value == "" {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", value, source)
}

func revisionsCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "revisions <application-id>",
		Short: "List revision requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				items, err := e.ListRevisions(ctx, actor, args[0], lang)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("When", "Slot", "By", "Comment", "Translated")
				for _, r := range items {
					tw.AppendRow(table.Row{r.CreatedAt, domain.SlotLabel(r.Slot), r.AuthorID, r.Comment, r.CommentTranslated})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "translate comments into this language")
	return cmd
}

func submissionsCmd() *cobra.Command {
	var slot int
	var track string
	cmd := &cobra.Command{
		Use:   "submissions <application-id>",
		Short: "List uploaded video versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var slotFilter *int
			if cmd.Flags().Changed("slot") {
				slotFilter = &slot
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				items, err := e.ListSubmissions(ctx, actor, args[0], slotFilter, track)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Slot", "Track", "Version", "File", "Size", "URL", "Uploaded")
				for _, s := range items {
					tw.AppendRow(table.Row{domain.SlotLabel(s.Slot), s.Track, s.Version, s.FileName, s.FileSize, s.URL, s.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&slot, "slot", 0, "only this slot")
	cmd.Flags().StringVar(&track, "track", "", "video or clean_video")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
