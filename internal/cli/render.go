package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/syncer"
)

var idr = message.NewPrinter(language.Indonesian)

// rupiah formats whole rupiah with Indonesian digit grouping.
func rupiah(n int64) string {
	return idr.Sprintf("Rp%d", n)
}

// qty formats a quantity without trailing zeros.
func qty(q float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", q), "0"), ".")
}

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	tw.Flush()
}

type productList []pos.Product

func (l productList) RenderText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No products.")
		return
	}
	table(w, "ID\tNAME\tPRICE\tSTOCK\tMIN\tBARCODE\tFLAGS", func(tw *tabwriter.Writer) {
		for _, p := range l {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				p.ID, p.Name, rupiah(p.Price), qty(p.Stock), qty(p.MinStock), p.Barcode, productFlags(p))
		}
	})
}

func productFlags(p pos.Product) string {
	var flags []string
	if p.IsPLU {
		flags = append(flags, "plu")
	}
	if p.LowStock() {
		flags = append(flags, "low")
	}
	if p.Deleted {
		flags = append(flags, "deleted")
	}
	return strings.Join(flags, ",")
}

type productView pos.Product

func (p productView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Product #%d %s\n", p.ID, p.Name)
	fmt.Fprintf(w, "  price %s, cost %s, stock %s (min %s)\n",
		rupiah(p.Price), rupiah(p.CostPrice), qty(p.Stock), qty(p.MinStock))
}

type transactionView pos.Transaction

func (t transactionView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s  #%d  %s  %s\n", t.Number, t.ID, t.Status, t.CreatedAt.Format(time.DateTime))
	if t.CustomerName != "" {
		fmt.Fprintf(w, "Customer: %s\n", t.CustomerName)
	}
	table(w, "ITEM\tQTY\tPRICE\tSUBTOTAL", func(tw *tabwriter.Writer) {
		for _, it := range t.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ProductName, qty(it.Quantity), rupiah(it.Price), rupiah(it.Subtotal))
		}
	})
	fmt.Fprintf(w, "Total: %s (%s)\n", rupiah(t.Total), t.Method)
	if t.Method == pos.PaymentCash || t.Status == pos.StatusPaid {
		fmt.Fprintf(w, "Cash: %s  Change: %s\n", rupiah(t.CashReceived), rupiah(t.Change))
	}
	if !t.Synced {
		fmt.Fprintln(w, "Not yet uploaded.")
	}
}

type transactionList []pos.Transaction

func (l transactionList) RenderText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}
	table(w, "ID\tNUMBER\tSTATUS\tMETHOD\tTOTAL\tSYNCED\tCREATED", func(tw *tabwriter.Writer) {
		for _, t := range l {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\t%s\n",
				t.ID, t.Number, t.Status, t.Method, rupiah(t.Total), t.Synced, t.CreatedAt.Format(time.DateTime))
		}
	})
}

type uploadReport syncer.UploadSummary

func (s uploadReport) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Upload: %d synced (%d created, %d updated), %d failed, %d skipped",
		s.Synced, s.Created, s.Updated, s.Failed, s.Skipped)
	if s.Repaired > 0 {
		fmt.Fprintf(w, ", %d repaired", s.Repaired)
	}
	if s.Stale > 0 {
		fmt.Fprintf(w, ", %d changed during upload", s.Stale)
	}
	fmt.Fprintln(w)
	if s.Aborted {
		fmt.Fprintln(w, "  aborted: remote unreachable")
	}
	renderFailures(w, "failed", s.Failures)
	renderFailures(w, "skipped", s.Skips)
}

type downloadReport syncer.DownloadSummary

func (s downloadReport) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Download: %d categories pushed, %d merged; %d products inserted, %d updated over %d pages",
		s.CategoriesPushed, s.CategoriesMerged, s.ProductsInserted, s.ProductsUpdated, s.Pages)
	if s.HistoryImported > 0 || s.HistoryExisting > 0 {
		fmt.Fprintf(w, "; history %d imported, %d already present", s.HistoryImported, s.HistoryExisting)
	}
	fmt.Fprintln(w)
	if s.PageLimitReached {
		fmt.Fprintln(w, "  page limit reached, catalog may be incomplete")
	}
	if s.Aborted {
		fmt.Fprintln(w, "  aborted: remote unreachable")
	}
	renderFailures(w, "failed", s.Failures)
}

type syncReport syncer.Summary

func (s syncReport) RenderText(w io.Writer) {
	uploadReport(s.Upload).RenderText(w)
	downloadReport(s.Download).RenderText(w)
}

func renderFailures(w io.Writer, verb string, fs []syncer.Failure) {
	for _, f := range fs {
		fmt.Fprintf(w, "  %s %s: %s", verb, f.Ref, f.Reason)
		if f.Attempts > 1 {
			fmt.Fprintf(w, " (after %d attempts)", f.Attempts)
		}
		fmt.Fprintln(w)
	}
}
